package challenge

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/gowebpki/jcs"
)

const signatureField = "signature"

// ErrNoSecret is returned when signing is requested without a secret.
var ErrNoSecret = errors.New("no signing secret configured")

// Canonical returns the RFC 8785 canonical JSON of the challenge without its
// signature.
func Canonical(c *Challenge) ([]byte, error) {
	doc, err := c.document()
	if err != nil {
		return nil, err
	}
	delete(doc, signatureField)

	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical form: %w", err)
	}
	canonical, err := jcs.Transform(plain)
	if err != nil {
		return nil, fmt.Errorf("canonicalize challenge: %w", err)
	}
	return canonical, nil
}

// document returns the challenge as a JSON object. A loaded challenge starts
// from the original document: keys it carried take the current field values,
// and keys it lacked are added only when the field was changed after loading.
// Zero values of absent optional keys never enter the canonical form.
func (c *Challenge) document() (map[string]interface{}, error) {
	current, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}
	doc, err := decodeObject(current)
	if err != nil {
		return nil, err
	}
	if len(c.raw) == 0 {
		return doc, nil
	}
	base, err := decodeObject(c.raw)
	if err != nil {
		return nil, err
	}
	loaded, err := decodeObject(c.loaded)
	if err != nil {
		return nil, err
	}
	overlayEdits(base, doc, loaded)
	if !c.Signed() {
		delete(base, signatureField)
	}
	return base, nil
}

// ComputeSignature returns the hex HMAC-SHA256 of the canonical form.
func ComputeSignature(c *Challenge, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	canonical, err := Canonical(c)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Sign sets the challenge signature.
func Sign(c *Challenge, secret []byte) error {
	sig, err := ComputeSignature(c, secret)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// VerifySignature reports whether the challenge is acceptable: unsigned
// challenges pass, signed ones need a secret and a matching HMAC.
func VerifySignature(c *Challenge, secret []byte) bool {
	if !c.Signed() {
		return true
	}
	if len(secret) == 0 {
		return false
	}
	want, err := ComputeSignature(c, secret)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(c.Signature)
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(want)
	return hmac.Equal(got, expected)
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode challenge object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode challenge object: not a JSON object")
	}
	return obj, nil
}

// overlayEdits writes cur into dst. Keys already in dst are overwritten;
// keys missing from dst are added only when cur differs from prev, the
// struct as it was right after loading. Keys dropped since loading are removed.
func overlayEdits(dst, cur, prev map[string]interface{}) {
	for k, v := range cur {
		before, hadBefore := prev[k]
		if sub, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst[k].(map[string]interface{}); ok {
				prevSub, _ := before.(map[string]interface{})
				overlayEdits(existing, sub, prevSub)
				continue
			}
		}
		if _, inDoc := dst[k]; inDoc || !hadBefore || !reflect.DeepEqual(v, before) {
			dst[k] = v
		}
	}
	for k := range prev {
		if _, still := cur[k]; !still {
			delete(dst, k)
		}
	}
}
