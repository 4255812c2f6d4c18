package domain

import "strings"

// MappingRule routes clients of an email domain to a chat channel.
type MappingRule struct {
	Domain    string `json:"domain"`
	ChannelID string `json:"channelId"`
}

// RulesToMap indexes rules by domain. Later rules win on duplicate domains.
func RulesToMap(rules []MappingRule) map[string]string {
	result := make(map[string]string, len(rules))
	for _, rule := range rules {
		result[rule.Domain] = rule.ChannelID
	}
	return result
}

// EmailDomain returns the part of an email address after the first '@'.
func EmailDomain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return domain
}
