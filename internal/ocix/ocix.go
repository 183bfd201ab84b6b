// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package ocix answers registry-side questions about image references
// without pulling layers: does the reference resolve, and to what digest.
package ocix

import (
	"context"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/pkg/errors"
)

// Descriptor summarizes a remote image reference.
type Descriptor struct {
	// Ref is the fully qualified reference as parsed.
	Ref string
	// Digest is the manifest digest ("sha256:...").
	Digest string
	// MediaType is the manifest media type.
	MediaType string
}

// Head issues a registry HEAD for ref and returns its descriptor. A nil
// error means the reference is pullable. The default keychain supplies
// credentials for private registries.
func Head(ctx context.Context, ref string, opts ...remote.Option) (*Descriptor, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid image reference %q", ref)
	}
	opts = append([]remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	}, opts...)
	desc, err := remote.Head(parsed, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", ref)
	}
	return &Descriptor{
		Ref:       parsed.Name(),
		Digest:    desc.Digest.String(),
		MediaType: string(desc.MediaType),
	}, nil
}

// Digest returns the remote manifest digest of ref. Useful for recording an
// image identity when it was never pulled locally.
func Digest(ctx context.Context, ref string, opts ...remote.Option) (string, error) {
	desc, err := Head(ctx, ref, opts...)
	if err != nil {
		return "", err
	}
	return desc.Digest, nil
}
