package models

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

const ETagAny = "*"

type ETag string

func (e ETag) String() string {
	return string(e)
}

// ComputeETag derives a strong ETag from the content of a response document.
// Equal documents always hash to the same tag, so conditional requests can
// short-circuit unchanged reads.
func ComputeETag(doc interface{}) (ETag, error) {
	hash, err := hashstructure.Hash(doc, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: false})
	if err != nil {
		return "", fmt.Errorf("error calculating document hash: %w", err)
	}
	return ETag(fmt.Sprintf("%q", fmt.Sprintf("%x", hash))), nil
}
