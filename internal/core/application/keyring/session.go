package keyring

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pollum-io/sysweb3-sub000/internal/core/ports"
	"github.com/pollum-io/sysweb3-sub000/pkg/secret"
	"github.com/pollum-io/sysweb3-sub000/pkg/wallet"
)

// signerSession is the in-memory only part of the keyring. It is rebuilt on
// every unlock and network switch and wiped on lock.
type signerSession struct {
	password *secret.String
	mnemonic *secret.String
	hd       *wallet.Wallet
	signer   signerContext
}

// signerContext holds the live connections of the active chain family.
// Only the one of the active family is set.
type signerContext struct {
	params   *chaincfg.Params
	explorer ports.UTXOExplorer
	provider ports.EVMProvider
}

func newSignerSession() *signerSession {
	return &signerSession{
		password: secret.New(""),
		mnemonic: secret.New(""),
	}
}

func (s *signerSession) isUnlocked() bool {
	return !s.password.IsEmpty()
}

// wipe zeroes the secrets and drops the HD signer and connections.
func (s *signerSession) wipe() {
	s.password.Wipe()
	s.mnemonic.Wipe()
	s.resetHD()
	s.signer.close()
	s.signer = signerContext{}
}

func (s *signerSession) resetHD() {
	if s.hd != nil {
		s.hd.Wipe()
		s.hd = nil
	}
}

func (c signerContext) close() {
	if c.provider != nil {
		c.provider.Close()
	}
}
