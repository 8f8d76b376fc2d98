package objectStore

import (
	"bytes"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/ulikunitz/xz/lzma"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cultivate-vcs/cultivate/internal/codec"
	"github.com/cultivate-vcs/cultivate/pkg/types"
)

// File payloads are cut with a content-defined (buzhash) chunker so edits in
// the middle of a large file only produce a handful of new chunks, and each
// chunk is LZMA-compressed before it hits the key-value store. Identical
// chunks across files deduplicate through content addressing. The manifest
// stored under the file key records the chunk sequence.

const (
	manifestFieldSize  = 1
	manifestFieldChunk = 2
)

type fileManifest struct {
	size   uint64
	chunks []types.Hash
}

func (m fileManifest) serialize() []byte {
	var b []byte
	if m.size > 0 {
		b = protowire.AppendTag(b, manifestFieldSize, protowire.VarintType)
		b = protowire.AppendVarint(b, m.size)
	}
	for _, h := range m.chunks {
		b = protowire.AppendTag(b, manifestFieldChunk, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Bytes())
	}
	return b
}

func parseManifest(data []byte) (fileManifest, error) {
	var m fileManifest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fileManifest{}, fmt.Errorf("file manifest: bad tag: %w", types.ErrCorruptObject)
		}
		data = data[n:]
		switch {
		case num == manifestFieldSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fileManifest{}, fmt.Errorf("file manifest: truncated size: %w", types.ErrCorruptObject)
			}
			m.size = v
			data = data[n:]
		case num == manifestFieldChunk && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fileManifest{}, fmt.Errorf("file manifest: truncated chunk hash: %w", types.ErrCorruptObject)
			}
			h, err := types.HashFromBytes(v)
			if err != nil {
				return fileManifest{}, fmt.Errorf("file manifest: %v: %w", err, types.ErrCorruptObject)
			}
			m.chunks = append(m.chunks, h)
			data = data[n:]
		default:
			return fileManifest{}, fmt.Errorf("file manifest: unexpected field %d: %w", num, types.ErrCorruptObject)
		}
	}
	return m, nil
}

// writeChunks cuts content into chunks, compresses and persists each one, and
// returns the manifest describing the sequence.
func (s *ObjectStore) writeChunks(content []byte) (fileManifest, error) {
	m := fileManifest{size: uint64(len(content))}
	if len(content) == 0 {
		return m, nil
	}

	bz := chunker.NewBuzhash(bytes.NewReader(content))
	for {
		chunk, err := bz.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileManifest{}, fmt.Errorf("chunking: %w", err)
		}

		chunkHash := codec.Digest(chunk)
		compressed, err := compressWithLzma(chunk)
		if err != nil {
			return fileManifest{}, fmt.Errorf("compress chunk %s: %w", chunkHash, err)
		}
		key := objectKey(prefixChunk, chunkHash)
		if err := s.kv.WriteIfAbsent(key, compressed); err != nil {
			return fileManifest{}, fmt.Errorf("persist chunk %s: %w", chunkHash, err)
		}
		m.chunks = append(m.chunks, chunkHash)
	}
	return m, nil
}

// readChunks reassembles content from a manifest, verifying every chunk
// against its hash.
func (s *ObjectStore) readChunks(m fileManifest) ([]byte, error) {
	content := make([]byte, 0, m.size)
	for _, chunkHash := range m.chunks {
		compressed, err := s.kv.Read(objectKey(prefixChunk, chunkHash))
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunkHash, err)
		}
		chunk, err := decompressWithLzma(compressed)
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %s: %v: %w", chunkHash, err, types.ErrCorruptObject)
		}
		if codec.Digest(chunk) != chunkHash {
			return nil, fmt.Errorf("chunk %s content mismatch: %w", chunkHash, types.ErrCorruptObject)
		}
		content = append(content, chunk...)
	}
	if uint64(len(content)) != m.size {
		return nil, fmt.Errorf("reassembled size %d does not match manifest size %d: %w",
			len(content), m.size, types.ErrCorruptObject)
	}
	return content, nil
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
