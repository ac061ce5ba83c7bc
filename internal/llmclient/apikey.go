package llmclient

// ApiKey carries a credential that must never be logged or printed in the
// clear. Get returns the raw value for use in a request; String returns a
// masked form safe for logs.
type ApiKey interface {
	Get() string
	String() string
}

type apiKey struct {
	key string
}

// NewApiKey wraps key so it can be passed around without every holder
// needing to remember to mask it before logging.
func NewApiKey(key string) ApiKey {
	return &apiKey{key: key}
}

func (k *apiKey) Get() string { return k.key }

// String renders the key as "api_key=<prefix>******<suffix>", revealing
// only enough of each end to distinguish keys in a log line.
func (k *apiKey) String() string {
	const keep = 2
	if len(k.key) <= keep*2 {
		return "api_key=******"
	}
	return "api_key=" + k.key[:keep] + "******" + k.key[len(k.key)-keep:]
}
