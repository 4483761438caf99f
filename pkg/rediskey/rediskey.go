package rediskey

import "fmt"

// Partner-resolution keys (global convention across services)
const (
	PartnerPrefix = "partner:campaign"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildPartnerKey returns "partner:campaign:{campaignID}"
func BuildPartnerKey(campaignID string) string {
	return NamespaceKey(PartnerPrefix, campaignID)
}
