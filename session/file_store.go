package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrPassphraseRequired is returned when a sealed session file is loaded without a passphrase.
var ErrPassphraseRequired = errors.New("session file is sealed; passphrase required")

// ErrSealOpen is returned when a sealed session file cannot be opened with the passphrase.
var ErrSealOpen = errors.New("session file seal could not be opened")

const (
	fileMagic       = "SCS1"
	fileModePlain   = byte(0)
	fileModeSealed  = byte(1)
	fileHeaderLen   = len(fileMagic) + 1
	fileSaltLen     = 16
	kdfTime         = 2
	kdfMemoryKB     = 19 * 1024
	kdfParallelism  = 1
	sessionFileMode = 0o600
	sessionDirMode  = 0o700
)

// FileStore persists the session in a single file, the client-side equivalent of
// browser local storage. With a passphrase the blob is sealed with XChaCha20-Poly1305
// under an argon2id-derived key; a fresh salt and nonce are drawn on every save.
type FileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewFileStore returns a FileStore writing to path. A nil or empty passphrase stores
// the blob unsealed.
func NewFileStore(path string, passphrase []byte) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session file path required")
	}
	var pass []byte
	if len(passphrase) > 0 {
		pass = append([]byte(nil), passphrase...)
	}
	return &FileStore{
		path:       filepath.Clean(path),
		passphrase: pass,
	}, nil
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the session file. A missing file yields an empty session.
func (f *FileStore) Load(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *FileStore) loadLocked() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}

	if len(data) < fileHeaderLen || string(data[:len(fileMagic)]) != fileMagic {
		return Session{}, fmt.Errorf("%w: bad file header", ErrBlobCorrupt)
	}
	header := data[:fileHeaderLen]
	body := data[fileHeaderLen:]

	switch header[len(fileMagic)] {
	case fileModePlain:
		return Decode(body)
	case fileModeSealed:
		if len(f.passphrase) == 0 {
			return Session{}, ErrPassphraseRequired
		}
		plain, err := f.open(header, body)
		if err != nil {
			return Session{}, err
		}
		return Decode(plain)
	default:
		return Session{}, fmt.Errorf("%w: unknown file mode", ErrBlobCorrupt)
	}
}

// Save writes s atomically, replacing any previous file.
func (f *FileStore) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(s)
}

// Rotate replaces the persisted token only while the file still holds a session, so a
// rotation in one process cannot bring back a session another process logged out of.
// The role on disk is kept.
func (f *FileStore) Rotate(ctx context.Context, token string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	persisted, err := f.loadLocked()
	if err != nil {
		return false, err
	}
	if !persisted.Authenticated() {
		return false, nil
	}
	persisted.Token = token
	persisted.UpdatedAt = at
	return true, f.saveLocked(persisted)
}

func (f *FileStore) saveLocked(s Session) error {
	blob, err := Encode(s)
	if err != nil {
		return err
	}

	var out []byte
	if len(f.passphrase) == 0 {
		out = append([]byte(fileMagic), fileModePlain)
		out = append(out, blob...)
	} else {
		out, err = f.seal(blob)
		if err != nil {
			return err
		}
	}

	return writeFileAtomic(f.path, out)
}

// Delete removes the session file. Deleting a missing file is not an error.
func (f *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (f *FileStore) seal(blob []byte) ([]byte, error) {
	header := append([]byte(fileMagic), fileModeSealed)

	salt := make([]byte, fileSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(f.passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(header)+len(salt)+len(nonce)+len(blob)+aead.Overhead())
	out = append(out, header...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, blob, header), nil
}

func (f *FileStore) open(header, body []byte) ([]byte, error) {
	if len(body) < fileSaltLen+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: sealed body too short", ErrBlobCorrupt)
	}
	salt := body[:fileSaltLen]
	nonce := body[fileSaltLen : fileSaltLen+chacha20poly1305.NonceSizeX]
	ciphertext := body[fileSaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(deriveKey(f.passphrase, salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrSealOpen
	}
	return plain, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, kdfTime, kdfMemoryKB, kdfParallelism, chacha20poly1305.KeySize)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, sessionDirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmpName, sessionFileMode); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
