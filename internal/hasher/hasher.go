package hasher

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	"github.com/soyunomas/dupescan/internal/entities"
)

// BlockSize is the fixed read size used while streaming a file into the
// digest. Peak memory per worker is one block regardless of file size.
const BlockSize = 32 * 1024

// Algorithm identifies one of the supported content digests.
type Algorithm int

const (
	Blake2b Algorithm = iota // default
	SHA384
	SHA256
	MD5
	Blake3
	XXHash
	XXH3
	Highway

	numAlgorithms
)

// highwayKey is fixed so digests are stable across runs.
var highwayKey = mustDecodeHex("000102030405060708090A0B0C0D0E0FF0E0D0C0B0A090807060504030201000")

type algorithmSpec struct {
	name   string
	crypto bool
	new    func() hash.Hash
}

var algorithms = [numAlgorithms]algorithmSpec{
	Blake2b: {name: "blake2b", crypto: true, new: newBlake2b},
	SHA384:  {name: "sha384", crypto: true, new: sha512.New384},
	SHA256:  {name: "sha256", crypto: true, new: sha256.New},
	MD5:     {name: "md5", crypto: true, new: md5.New},
	Blake3:  {name: "blake3", crypto: true, new: func() hash.Hash { return blake3.New() }},
	XXHash:  {name: "xxhash", new: func() hash.Hash { return xxhash.New() }},
	XXH3:    {name: "xxh3", new: func() hash.Hash { return xxh3.New() }},
	Highway: {name: "highway", new: newHighway},
}

// digestPools keeps reusable hash states per algorithm.
var digestPools [numAlgorithms]sync.Pool

// bufferPool holds BlockSize read buffers shared by all workers.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, BlockSize)
		return &b
	},
}

func init() {
	for i := range digestPools {
		newHash := algorithms[i].new
		digestPools[i].New = func() any { return newHash() }
	}
}

func newBlake2b() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		// only reachable with an oversized key
		panic(err)
	}
	return h
}

func newHighway() hash.Hash {
	h, err := highwayhash.New(highwayKey)
	if err != nil {
		panic(err)
	}
	return h
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseAlgorithm maps a user-facing name onto an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, spec := range algorithms {
		if spec.name == name {
			return Algorithm(i), nil
		}
	}
	return 0, errors.Errorf("unsupported hash algorithm: %q (supported: %s)", name, strings.Join(Names(), ", "))
}

// Names lists every algorithm name in declaration order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for _, spec := range algorithms {
		names = append(names, spec.name)
	}
	return names
}

func (a Algorithm) valid() bool {
	return a >= 0 && a < numAlgorithms
}

func (a Algorithm) String() string {
	if !a.valid() {
		return "unknown"
	}
	return algorithms[a].name
}

// Cryptographic reports whether collisions are computationally infeasible
// to produce on purpose.
func (a Algorithm) Cryptographic() bool {
	return a.valid() && algorithms[a].crypto
}

// Size returns the digest length in bytes.
func (a Algorithm) Size() int {
	if !a.valid() {
		return 0
	}
	return algorithms[a].new().Size()
}

// Hasher computes content digests for files on a given filesystem.
type Hasher struct {
	fs  afero.Fs
	alg Algorithm
}

// New creates a Hasher. A nil fs means the host filesystem.
func New(fs afero.Fs, alg Algorithm) *Hasher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Hasher{fs: fs, alg: alg}
}

// Algorithm returns the algorithm the Hasher was built with.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// HashFile streams the file at path through the algorithm in BlockSize
// chunks. ctx is checked between chunks so large files can be abandoned.
func (h *Hasher) HashFile(ctx context.Context, path string) (entities.Digest, error) {
	if !h.alg.valid() {
		return "", errors.Errorf("unsupported hash algorithm id %d", int(h.alg))
	}

	file, err := h.fs.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open file %s", path)
	}
	defer file.Close()

	if osFile, ok := file.(*os.File); ok {
		adviseSequential(osFile)
	}

	pool := &digestPools[h.alg]
	d := pool.Get().(hash.Hash)
	d.Reset()
	defer pool.Put(d)

	bufPtr := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := file.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "failed to read file %s", path)
		}
	}

	return entities.Digest(d.Sum(nil)), nil
}

// HashBytes digests an in-memory value with the same state the file path
// uses, so the two agree for identical content.
func HashBytes(alg Algorithm, data []byte) (entities.Digest, error) {
	if !alg.valid() {
		return "", errors.Errorf("unsupported hash algorithm id %d", int(alg))
	}
	d := algorithms[alg].new()
	d.Write(data)
	return entities.Digest(d.Sum(nil)), nil
}
