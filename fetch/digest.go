package fetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// Digest is an expected or computed artifact hash.
type Digest struct {
	Algorithm string // sha1, sha256 or sha512
	Sum       []byte
}

// String formats the digest as "<algorithm>:<hex>".
func (d Digest) String() string {
	return d.Algorithm + ":" + hex.EncodeToString(d.Sum)
}

// IsZero reports whether d is empty.
func (d Digest) IsZero() bool {
	return d.Algorithm == "" && len(d.Sum) == 0
}

// ParseDigest reads the digest notations used by package registries:
// "sha256:<hex>", subresource-integrity "sha512-<base64>", and bare hex
// strings whose length identifies SHA-1 or SHA-256.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, nil
	}
	if algo, rest, ok := strings.Cut(s, ":"); ok {
		sum, err := hex.DecodeString(rest)
		if err != nil {
			return Digest{}, fmt.Errorf("digest %q: %w", s, err)
		}
		return checkDigest(Digest{Algorithm: strings.ToLower(algo), Sum: sum})
	}
	if algo, rest, ok := strings.Cut(s, "-"); ok {
		sum, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return Digest{}, fmt.Errorf("digest %q: %w", s, err)
		}
		return checkDigest(Digest{Algorithm: strings.ToLower(algo), Sum: sum})
	}
	sum, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %q: %w", s, err)
	}
	switch len(sum) {
	case sha1.Size:
		return Digest{Algorithm: "sha1", Sum: sum}, nil
	case sha256.Size:
		return Digest{Algorithm: "sha256", Sum: sum}, nil
	}
	return Digest{}, fmt.Errorf("digest %q: unrecognised length", s)
}

func checkDigest(d Digest) (Digest, error) {
	h, err := newHash(d.Algorithm)
	if err != nil {
		return Digest{}, err
	}
	if h.Size() != len(d.Sum) {
		return Digest{}, fmt.Errorf("%s digest has %d bytes, want %d", d.Algorithm, len(d.Sum), h.Size())
	}
	return d, nil
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm %q", algo)
}

// Download streams url through SHA-256 and returns "sha256:<hex>". When
// expected is non-zero the artifact is also hashed with its algorithm and a
// mismatch fails with ErrChecksumMismatch.
func Download(ctx context.Context, f FetcherInterface, url string, expected Digest) (string, error) {
	artifact, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() { _ = artifact.Body.Close() }()

	sum := sha256.New()
	w := io.Writer(sum)
	var check hash.Hash
	if !expected.IsZero() {
		check, err = newHash(expected.Algorithm)
		if err != nil {
			return "", &ProbeError{URL: url, Err: err}
		}
		w = io.MultiWriter(sum, check)
	}
	if _, err := io.Copy(w, artifact.Body); err != nil {
		return "", &ProbeError{URL: url, Err: fmt.Errorf("reading artifact: %w", err)}
	}
	if check != nil && !bytes.Equal(check.Sum(nil), expected.Sum) {
		return "", &ProbeError{URL: url, Err: fmt.Errorf("%w: want %s", ErrChecksumMismatch, expected)}
	}
	return Digest{Algorithm: "sha256", Sum: sum.Sum(nil)}.String(), nil
}
