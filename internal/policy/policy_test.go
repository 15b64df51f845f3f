package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		msg  string
		want Topic
	}{
		{"Fiyatınız çok yüksek", TopicPriceObjection},
		{"Bu ne kadar ücret?", TopicPriceObjection},
		{"FİYAT nedir", TopicPriceObjection},
		{"Garanti süresi ne kadar?", TopicWarrantyInquiry},
		{"Teknik destek istiyorum", TopicWarrantyInquiry},
		{"Ürün kalitesi nasıl?", TopicProductInfo},
		{"Malzemesi ne?", TopicProductInfo},
		{"Merhaba", TopicGeneral},
		{"", TopicGeneral},
		// Price terms take precedence over warranty terms.
		{"Garantinin maliyeti ne?", TopicPriceObjection},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTopic(tt.msg))
		})
	}
}

func TestFilterProhibited(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		topics  []string
		blocked bool
	}{
		{"no topics", "politika konuşalım", nil, false},
		{"match", "politika konuşalım", []string{"politika"}, true},
		{"case insensitive", "POLİTİKA konuşalım", []string{"Politika"}, true},
		{"comma separated entry", "dinden bahset", []string{"politika, din"}, true},
		{"blank entries ignored", "herhangi", []string{" , ", ""}, false},
		{"no match", "fiyat nedir", []string{"politika", "din"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, blocked := FilterProhibited("model cevabı", tt.msg, tt.topics)
			assert.Equal(t, tt.blocked, blocked)
			if tt.blocked {
				assert.Equal(t, RefusalText, got)
			} else {
				assert.Equal(t, "model cevabı", got)
			}
		})
	}
}

func TestFilterProhibitedIgnoresAnswerText(t *testing.T) {
	got, blocked := FilterProhibited("politika hakkında konuşamam", "merhaba", []string{"politika"})
	assert.False(t, blocked)
	assert.Equal(t, "politika hakkında konuşamam", got)
}
