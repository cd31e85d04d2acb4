package domain

import "strings"

// Identity namespaces persisted progress: either Guest or an account key.
type Identity string

// Guest is the anonymous, device-local identity.
const Guest Identity = "guest"

// IdentityFrom normalizes a user key supplied by the identity provider.
// An empty key means anonymous.
func IdentityFrom(userKey string) Identity {
	key := strings.ToLower(strings.TrimSpace(userKey))
	if key == "" {
		return Guest
	}
	return Identity(key)
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool {
	return i == "" || i == Guest
}

func (i Identity) String() string {
	if i == "" {
		return string(Guest)
	}
	return string(i)
}
