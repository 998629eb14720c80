package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so equal chunks encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireValue struct {
	Kind   uint8   `cbor:"1,keyasint"`
	Number float64 `cbor:"2,keyasint"`
}

type wireChunk struct {
	Code      []byte      `cbor:"1,keyasint"`
	Constants []wireValue `cbor:"2,keyasint"`
	Lines     []int       `cbor:"3,keyasint"`
}

// MarshalChunk serializes a Chunk to CBOR bytes for transport.
func MarshalChunk(c *Chunk) ([]byte, error) {
	w := wireChunk{
		Code:      c.Code,
		Constants: make([]wireValue, len(c.Constants)),
		Lines:     c.Lines,
	}
	for i, v := range c.Constants {
		w.Constants[i] = wireValue{Kind: uint8(v.kind), Number: v.num}
	}
	data, err := cborEncMode.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal chunk: %w", err)
	}
	return data, nil
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes. The result is sealed.
//
// Table shape is checked here (lockstep lines, pool size, value kinds).
// The instruction stream itself is not decoded: a malformed stream is the
// VM's to report when it runs into it.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if len(w.Code) != len(w.Lines) {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w: %d code bytes, %d lines",
			ErrLineTableMismatch, len(w.Code), len(w.Lines))
	}
	if len(w.Constants) > MaxConstants {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w: %d", ErrTooManyConstants, len(w.Constants))
	}

	c := &Chunk{
		Code:      w.Code,
		Constants: make([]Value, len(w.Constants)),
		Lines:     w.Lines,
	}
	if c.Code == nil {
		c.Code = []byte{}
		c.Lines = []int{}
	}
	for i, wv := range w.Constants {
		kind := ValueKind(wv.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("bytecode: unmarshal chunk: constant %d has unknown kind %d", i, wv.Kind)
		}
		c.Constants[i] = Value{kind: kind, num: wv.Number}
	}
	c.Seal()
	return c, nil
}
