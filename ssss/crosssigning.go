// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package ssss

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/matrix-org/go-e2ee-core/e2eeerr"
	"github.com/matrix-org/go-e2ee-core/internal/primitives"
)

// Secret names under which cross-signing private seeds live in Secret
// Storage, per spec §4.5.
const (
	SecretMaster      = "m.cross_signing.master"
	SecretSelfSigning = "m.cross_signing.self_signing"
	SecretUserSigning = "m.cross_signing.user_signing"
)

// CrossSigningKey is the public side of one of the three cross-signing
// identities, with its signatures, in the shape Matrix clients publish.
type CrossSigningKey struct {
	UserID     string                       `json:"user_id"`
	Usage      []string                     `json:"usage"`
	Keys       map[string]string            `json:"keys"`
	Signatures map[string]map[string]string `json:"signatures,omitempty"`
}

// CrossSigningIdentity bundles the three generated keypairs and their
// published, signed public forms, returned by Bootstrap.
type CrossSigningIdentity struct {
	MasterPriv      ed25519.PrivateKey
	SelfSigningPriv ed25519.PrivateKey
	UserSigningPriv ed25519.PrivateKey

	Master      CrossSigningKey
	SelfSigning CrossSigningKey
	UserSigning CrossSigningKey
}

// Bootstrap generates three fresh Ed25519 seeds for master, self-signing
// and user-signing, then signs self-signing and user-signing with the
// master key and has the master key sign itself, per spec §4.5's
// Cross-signing bootstrap recipe.
func Bootstrap(userID string, entropy primitives.EntropySource) (*CrossSigningIdentity, error) {
	if entropy == nil {
		entropy = primitives.SystemEntropy
	}
	masterPub, masterPriv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.Bootstrap", e2eeerr.InsufficientEntropy, err)
	}
	selfPub, selfPriv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.Bootstrap", e2eeerr.InsufficientEntropy, err)
	}
	userPub, userPriv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, e2eeerr.Wrap("ssss.Bootstrap", e2eeerr.InsufficientEntropy, err)
	}

	master := newCrossSigningKey(userID, "master", masterPub, []string{"master"})
	self := newCrossSigningKey(userID, "self_signing", selfPub, []string{"self_signing"})
	user := newCrossSigningKey(userID, "user_signing", userPub, []string{"user_signing"})

	masterKeyID := "ed25519:" + base64.StdEncoding.EncodeToString(masterPub)

	master, err = signCrossSigningKey(master, userID, masterKeyID, masterPriv)
	if err != nil {
		return nil, err
	}
	self, err = signCrossSigningKey(self, userID, masterKeyID, masterPriv)
	if err != nil {
		return nil, err
	}
	user, err = signCrossSigningKey(user, userID, masterKeyID, masterPriv)
	if err != nil {
		return nil, err
	}

	return &CrossSigningIdentity{
		MasterPriv:      masterPriv,
		SelfSigningPriv: selfPriv,
		UserSigningPriv: userPriv,
		Master:          master,
		SelfSigning:     self,
		UserSigning:     user,
	}, nil
}

func newCrossSigningKey(userID, keyName string, pub ed25519.PublicKey, usage []string) CrossSigningKey {
	keyID := "ed25519:" + base64.StdEncoding.EncodeToString(pub)
	return CrossSigningKey{
		UserID: userID,
		Usage:  usage,
		Keys:   map[string]string{keyID: base64.StdEncoding.EncodeToString(pub)},
	}
}

func signCrossSigningKey(key CrossSigningKey, signerUserID, signerKeyID string, signerPriv ed25519.PrivateKey) (CrossSigningKey, error) {
	key.Signatures = nil
	body, err := primitives.CanonicalJSON(key)
	if err != nil {
		return key, e2eeerr.Wrap("ssss.signCrossSigningKey", e2eeerr.BadInput, err)
	}
	sig := ed25519.Sign(signerPriv, body)
	key.Signatures = map[string]map[string]string{
		signerUserID: {signerKeyID: base64.StdEncoding.EncodeToString(sig)},
	}
	return key, nil
}

// PersistPrivateSeeds encrypts each cross-signing private key's Ed25519
// seed under storageKey, keyed by SecretMaster/SecretSelfSigning/
// SecretUserSigning, ready to upload as Secret Storage account_data.
func (id *CrossSigningIdentity) PersistPrivateSeeds(storageKey []byte) (map[string]*EncryptedSecret, error) {
	out := make(map[string]*EncryptedSecret, 3)
	seeds := map[string]ed25519.PrivateKey{
		SecretMaster:      id.MasterPriv,
		SecretSelfSigning: id.SelfSigningPriv,
		SecretUserSigning: id.UserSigningPriv,
	}
	for name, priv := range seeds {
		es, err := EncryptSecret(storageKey, name, priv.Seed())
		if err != nil {
			return nil, err
		}
		out[name] = es
	}
	return out, nil
}
