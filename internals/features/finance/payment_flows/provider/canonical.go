package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bytedance/sonic"
)

// Canonical form: compact JSON, key terurut, angka dipertahankan apa adanya, tanpa HTML escape.
var canonicalJSON = sonic.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
	UseNumber:   true,
}.Froze()

func decodePayload(body []byte) (map[string]any, error) {
	var m map[string]any
	if err := canonicalJSON.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMalformedPayload
	}
	return m, nil
}

// CanonicalPayload men-serialize payload tanpa field signature.
func CanonicalPayload(payload map[string]any, exclude string) ([]byte, error) {
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == exclude {
			continue
		}
		cp[k] = v
	}
	return canonicalJSON.Marshal(cp)
}

func hmacSHA256(secret string, data []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return mac.Sum(nil)
}

// SignHostedPayload menghitung signature webhook ONLINE_PSP (hex HMAC-SHA256).
func SignHostedPayload(secret string, payload map[string]any) (string, error) {
	canon, err := CanonicalPayload(payload, hostedSignatureField)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hmacSHA256(secret, canon)), nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case interface{ String() string }: // json.Number
		return strings.TrimSpace(v.String())
	}
	return ""
}
