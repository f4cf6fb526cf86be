package redis

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// Settings returns the key holding the JSON settings record
func (k *Keys) Settings() string {
	return k.prefix + "settings"
}

// Prompts returns the key of the hash mapping prompt ID to JSON prompt
func (k *Keys) Prompts() string {
	return k.prefix + "prompts"
}
