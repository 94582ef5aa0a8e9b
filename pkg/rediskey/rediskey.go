package rediskey

import "fmt"

// Engine keys (global convention across binaries)
const (
	LockPrefix     = "careerloop:lock"
	UserPrefix     = "careerloop:user"
	SequencePrefix = "careerloop:seq"
	CatalogPrefix  = "careerloop:catalog"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildLockKey returns "careerloop:lock:{key}"
func BuildLockKey(key string) string {
	return NamespaceKey(LockPrefix, key)
}

// BuildUserPeriodKey returns "careerloop:user:{userID}:{period}", the advisory lock
// scope shared by instantiate and verify for one user and period.
func BuildUserPeriodKey(userID, periodKey string) string {
	return NamespaceKey(UserPrefix, fmt.Sprintf("%s:%s", userID, periodKey))
}

// BuildSequenceKey returns "careerloop:seq:{prefix}:{day}"
func BuildSequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s", prefix, day))
}

// BuildCatalogVersionKey returns "careerloop:catalog:version"
func BuildCatalogVersionKey() string {
	return NamespaceKey(CatalogPrefix, "version")
}
