package entity

import "strings"

// ProviderType identifies an external OAuth identity provider.
type ProviderType string

const (
	ProviderTypeGoogle ProviderType = "GOOGLE"
	ProviderTypeKakao  ProviderType = "KAKAO"
	ProviderTypeNaver  ProviderType = "NAVER"
)

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the ProviderType is a supported provider.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderTypeGoogle, ProviderTypeKakao, ProviderTypeNaver:
		return true
	default:
		return false
	}
}

// ParseProviderType converts a case-insensitive provider name into a ProviderType.
func ParseProviderType(s string) (ProviderType, bool) {
	provider := ProviderType(strings.ToUpper(strings.TrimSpace(s)))

	return provider, provider.IsValid()
}
