// Package policy classifies user messages and filters answers that touch
// an agent's prohibited topics.
//
// Both checks are plain substring matches and will produce false positives
// (e.g. "para" inside "paragraf").
package policy

import (
	"strings"

	"github.com/ashureev/personachat/internal/shared"
)

// Topic is the coarse category reported with every reply.
type Topic string

const (
	TopicPriceObjection  Topic = "price_objection"
	TopicWarrantyInquiry Topic = "warranty_inquiry"
	TopicProductInfo     Topic = "product_info"
	TopicGeneral         Topic = "general"

	// TopicSecurity marks replies produced by the injection guard.
	TopicSecurity Topic = "security"
	// TopicError marks replies produced after a provider failure.
	TopicError Topic = "error"
)

// RefusalText replaces answers whose request mentions a prohibited topic.
const RefusalText = "Üzgünüm, bu konu hakkında bilgi veremiyorum. Başka nasıl yardımcı olabilirim?"

type bucket struct {
	topic    Topic
	keywords []string
}

// Earlier buckets win.
var buckets = []bucket{
	{TopicPriceObjection, []string{"fiyat", "ücret", "para", "maliyet"}},
	{TopicWarrantyInquiry, []string{"garanti", "destek", "servis"}},
	{TopicProductInfo, []string{"ürün", "kalite", "malzeme"}},
}

// ClassifyTopic returns the first bucket whose keywords occur in userMessage.
func ClassifyTopic(userMessage string) Topic {
	for _, b := range buckets {
		if _, ok := shared.ContainsAnyFold(userMessage, b.keywords); ok {
			return b.topic
		}
	}
	return TopicGeneral
}

// FilterProhibited replaces answer with RefusalText when any prohibited topic
// occurs in userMessage. Topic entries are also split on commas.
func FilterProhibited(answer, userMessage string, topics []string) (string, bool) {
	if _, ok := MatchProhibited(userMessage, topics); ok {
		return RefusalText, true
	}
	return answer, false
}

// MatchProhibited returns the first prohibited topic found in userMessage.
func MatchProhibited(userMessage string, topics []string) (string, bool) {
	for _, entry := range topics {
		for _, t := range strings.Split(entry, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if shared.ContainsFold(userMessage, t) {
				return t, true
			}
		}
	}
	return "", false
}
