package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
)

const (
	signatureHeader = "X-Webhook-Hmac"
	timestampHeader = "X-Webhook-Timestamp"
)

func webhookSecret() string {
	return os.Getenv("CHATERY_WEBHOOK_SECRET")
}

// verifySignature checks the gateway's HMAC-SHA512 signature over the raw
// body and returns the body for further decoding. An empty secret skips
// verification outside production.
func verifySignature(r *http.Request, secretKey string) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secretKey == "" {
		if os.Getenv("CHATERY_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	expectedSignatureHex := r.Header.Get(signatureHeader)
	if expectedSignatureHex == "" {
		return nil, fmt.Errorf("missing signature header: %s", signatureHeader)
	}
	if r.Header.Get(timestampHeader) == "" {
		return nil, fmt.Errorf("missing timestamp header: %s", timestampHeader)
	}

	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	computedSignatureHex := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computedSignatureHex), []byte(expectedSignatureHex)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	return body, nil
}
