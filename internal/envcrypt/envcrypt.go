// Package envcrypt handles encrypted environment bundles so secrets
// can sit next to a project without living in shell history or plain
// dotfiles. A bundle is a newline-delimited KEY=VALUE block sealed
// with AES-256-GCM under a local key file.
package envcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const keySize = 32

// GenerateKey writes a fresh random key to path with mode 0600. It
// refuses to overwrite an existing key.
func GenerateKey(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("key path is required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return err
	}
	return os.WriteFile(path, key, 0o600)
}

func LoadKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(b), keySize)
	}
	return b, nil
}

// EncryptEnv seals an environment map into a base64 blob.
func EncryptEnv(env map[string]string, key []byte) (string, error) {
	plain := Format(env)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(plain), nil)
	combined := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// DecryptEnv opens a blob produced by EncryptEnv.
func DecryptEnv(enc string, key []byte) (map[string]string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	return Parse(string(plain))
}

// Parse reads newline-delimited KEY=VALUE pairs. Blank lines and lines
// starting with # are skipped.
func Parse(text string) (map[string]string, error) {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid env line: %q", line)
		}
		out[name] = value
	}
	return out, nil
}

// Format renders an environment map as sorted KEY=VALUE lines.
func Format(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(env[k])
		sb.WriteByte('\n')
	}
	return sb.String()
}
