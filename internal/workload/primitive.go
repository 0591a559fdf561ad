package workload

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/turtacn/Brownout/pkg/consts"
)

// Primitive is one fixed-cost operation over consts.PrimitiveBlockSize bytes.
// It is the atomic unit of interruptibility.
type Primitive interface {
	Run()
}

// fixtureKey is the AES-256 key loaded into the reference fixture.
var fixtureKey = [32]byte{
	0xDE, 0xAD, 0xBE, 0xEF, 0xBA, 0xDC, 0x0F, 0xEE,
	0xFE, 0xED, 0xBE, 0xEF, 0xBE, 0xEF, 0xBA, 0xBE,
	0xBA, 0xDF, 0x00, 0x0D, 0xFE, 0xED, 0xC0, 0xDE,
	0xD0, 0xD0, 0xCA, 0xCA, 0xCA, 0xFE, 0xBA, 0xBE,
}

// AESPrimitive encrypts the same 16-byte message on every call. Nothing is
// kept; the operation only consumes a deterministic amount of time.
type AESPrimitive struct {
	block cipher.Block
	src   [consts.PrimitiveBlockSize]byte
	dst   [consts.PrimitiveBlockSize]byte
}

func NewAESPrimitive() *AESPrimitive {
	// A 32-byte key never fails NewCipher.
	block, err := aes.NewCipher(fixtureKey[:])
	if err != nil {
		panic(err)
	}
	p := &AESPrimitive{block: block}
	copy(p.src[:], "I am a meat popsicle.")
	return p
}

func (p *AESPrimitive) Run() {
	p.block.Encrypt(p.dst[:], p.src[:])
}

// Output exposes the last ciphertext block.
func (p *AESPrimitive) Output() []byte {
	return p.dst[:]
}

// Personal.AI order the ending
