package upload

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	// Structural decode probes for the accepted image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

// Transport-stage rejections. These are caller mistakes, not attacks, so
// they carry plain messages and are not written to the security log.
var (
	ErrEmptyFile = errors.New("Uploaded file is empty")
	ErrTooLarge  = errors.New("File too large")
)

// SecurityViolation is returned when the scanning pipeline rejects a
// file. Reason is safe to surface to the caller; the full event goes to
// the security log.
type SecurityViolation struct {
	Reason string
}

func (e *SecurityViolation) Error() string {
	return "Security violation detected. Upload blocked: " + e.Reason
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

// Filename components that mark a double-extension smuggling attempt,
// e.g. shell.php.jpg.
var executableExtensions = map[string]bool{
	"php": true, "phtml": true, "php3": true, "php4": true, "php5": true,
	"pht": true, "phar": true, "phps": true, "cgi": true, "pl": true,
	"exe": true, "sh": true, "bat": true, "com": true,
}

// Dimensions of a stored image, measured from the decoded header and
// never trusted from client input.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result describes a successfully stored upload.
type Result struct {
	Filename   string     `json:"filename"`
	URL        string     `json:"url"`
	Path       string     `json:"path"`
	Size       int64      `json:"size"`
	Dimensions Dimensions `json:"dimensions"`
}

// Info describes a stored image for listings.
type Info struct {
	Filename   string     `json:"filename"`
	URL        string     `json:"url"`
	Size       int64      `json:"size"`
	Uploaded   int64      `json:"uploaded"`
	Dimensions Dimensions `json:"dimensions"`
}

// UploadGuard validates, scans and stores uploaded images under a
// directory pre-provisioned with deny-all server rules.
type UploadGuard struct {
	dir          string
	urlPrefix    string
	maxSize      int64
	maxDimension int
	scanner      ContentScanner
	log          *security.EventLog
}

// NewUploadGuard prepares the storage directory (creating it with the
// deny stubs when absent) and returns the guard. A nil scanner selects
// the default signature list.
func NewUploadGuard(dir, urlPrefix string, maxSize int64, maxDimension int, scanner ContentScanner, log *security.EventLog) (*UploadGuard, error) {
	if scanner == nil {
		scanner = NewSignatureScanner()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	g := &UploadGuard{
		dir:          dir,
		urlPrefix:    strings.TrimRight(urlPrefix, "/"),
		maxSize:      maxSize,
		maxDimension: maxDimension,
		scanner:      scanner,
		log:          log,
	}
	if err := g.writeSecurityStubs(); err != nil {
		return nil, err
	}
	return g, nil
}

// writeSecurityStubs drops a deny-all .htaccess and a directory-listing
// blocker into the upload directory, once.
func (g *UploadGuard) writeSecurityStubs() error {
	htaccess := filepath.Join(g.dir, ".htaccess")
	if _, err := os.Stat(htaccess); os.IsNotExist(err) {
		content := "# Prevent script execution\n" +
			"<FilesMatch \"\\.php$\">\n" +
			"    Order allow,deny\n" +
			"    Deny from all\n" +
			"</FilesMatch>\n\n" +
			"# Prevent access to all files by default\n" +
			"Deny from all\n"
		if err := os.WriteFile(htaccess, []byte(content), 0o600); err != nil {
			return fmt.Errorf("write upload .htaccess: %w", err)
		}
	}

	index := filepath.Join(g.dir, "index.html")
	if _, err := os.Stat(index); os.IsNotExist(err) {
		if err := os.WriteFile(index, []byte("<!doctype html><title>403</title>Access denied\n"), 0o600); err != nil {
			return fmt.Errorf("write upload index stub: %w", err)
		}
	}
	return nil
}

// HandleUpload runs the full validation pipeline over the uploaded bytes
// and, on success, stores them under a generated name. Every rejection
// short-circuits with its own reason; security-stage rejections are also
// written to the security log with the client address.
func (g *UploadGuard) HandleUpload(originalName string, content []byte, ip, userAgent string) (*Result, error) {
	// Stage 1: transport validation.
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(content)) > g.maxSize {
		return nil, fmt.Errorf("%w. Maximum size: %dMB", ErrTooLarge, g.maxSize/1024/1024)
	}

	// Stage 2: content-based MIME detection. The client-declared type is
	// never consulted.
	mimeType := detectMime(content)
	if !allowedMimeTypes[mimeType] {
		return nil, g.violation("Invalid MIME type: "+mimeType, originalName, ip, userAgent)
	}

	// Stage 3: structural decode probe. Matching magic bytes alone are
	// not proof of a parseable image.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, g.violation("Not a valid image file", originalName, ip, userAgent)
	}

	// Stage 4: extension allow-list; an unrecognized extension with a
	// valid MIME type falls back to the safe canonical one.
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if !allowedExtensions[extension] {
		extension = "jpg"
	}

	// Stage 5: double-extension smuggling.
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	for _, part := range strings.Split(base, ".") {
		if executableExtensions[strings.ToLower(part)] {
			return nil, g.violation("Double extension detected", originalName, ip, userAgent)
		}
	}

	// Stage 6: injection-signature scan over the raw bytes.
	if _, found := g.scanner.Scan(content); found {
		return nil, g.violation("Malicious code detected in file", originalName, ip, userAgent)
	}

	// Stage 7: dimension ceiling against decompression bombs.
	if cfg.Width > g.maxDimension || cfg.Height > g.maxDimension {
		return nil, g.violation("Image dimensions too large", originalName, ip, userAgent)
	}

	// Stage 8: JPEG metadata segments can smuggle payloads past the main
	// scan when the image body is otherwise clean; rescan them alone.
	if mimeType == "image/jpeg" {
		if meta := jpegMetadata(content); len(meta) > 0 {
			if _, found := g.scanner.Scan(meta); found {
				return nil, g.violation("Malicious EXIF data detected", originalName, ip, userAgent)
			}
		}
	}

	filename, err := g.safeFilename(extension)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(g.dir, filename)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	g.log.Record("Image uploaded successfully", filename, ip, userAgent)

	return &Result{
		Filename:   filename,
		URL:        g.urlPrefix + "/" + filename,
		Path:       path,
		Size:       int64(len(content)),
		Dimensions: Dimensions{Width: cfg.Width, Height: cfg.Height},
	}, nil
}

func (g *UploadGuard) violation(reason, originalName, ip, userAgent string) error {
	g.log.Record("Malicious file upload blocked", originalName+": "+reason, ip, userAgent)
	return &SecurityViolation{Reason: reason}
}

// detectMime sniffs the content type from the leading bytes.
func detectMime(content []byte) string {
	mimeType := http.DetectContentType(content)
	// Non-image sniffs carry a charset parameter; the allow-list keys on
	// the bare type.
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// safeFilename derives a stored name from a hash of fresh identifiers.
// The original client filename never reaches the filesystem.
func (g *UploadGuard) safeFilename(extension string) (string, error) {
	random := make([]byte, 8)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	seed := uuid.NewString() + hex.EncodeToString(random) + fmt.Sprint(time.Now().Unix())
	sum := sha256.Sum256([]byte(seed))
	stem := hex.EncodeToString(sum[:])[:32]

	filename := stem + "." + extension
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(g.dir, filename)); os.IsNotExist(err) {
			return filename, nil
		}
		filename = fmt.Sprintf("%s_%d.%s", stem, counter, extension)
	}
}

// jpegMetadata concatenates the payloads of APPn and COM segments between
// the start-of-image marker and the first scan.
func jpegMetadata(content []byte) []byte {
	if len(content) < 4 || content[0] != 0xFF || content[1] != 0xD8 {
		return nil
	}

	var meta []byte
	pos := 2
	for pos+4 <= len(content) {
		if content[pos] != 0xFF {
			break
		}
		marker := content[pos+1]
		// Start of scan: entropy-coded data follows, no more segments.
		if marker == 0xDA {
			break
		}
		// Standalone markers carry no length.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(content[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(content) {
			break
		}
		isApp := marker >= 0xE0 && marker <= 0xEF
		if isApp || marker == 0xFE {
			meta = append(meta, content[pos+4:pos+2+length]...)
		}
		pos += 2 + length
	}
	return meta
}

// Delete removes a stored image. The name is reduced to its base to
// neutralize traversal.
func (g *UploadGuard) Delete(filename, ip, userAgent string) error {
	filename = filepath.Base(filename)
	path := filepath.Join(g.dir, filename)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.ErrNotExist
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	g.log.Record("Image deleted", filename, ip, userAgent)
	return nil
}

// List returns stored images newest first, paginated by limit/offset.
func (g *UploadGuard) List(limit, offset int) ([]Info, error) {
	files, err := g.imageFiles()
	if err != nil {
		return nil, err
	}

	type entry struct {
		path string
		fi   os.FileInfo
	}
	entries := make([]entry, 0, len(files))
	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: path, fi: fi})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].fi.ModTime().After(entries[j].fi.ModTime())
	})

	if offset > len(entries) {
		offset = len(entries)
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, g.describe(filepath.Base(e.path), e.fi))
	}
	return infos, nil
}

// Count reports how many images are stored.
func (g *UploadGuard) Count() (int, error) {
	files, err := g.imageFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// Info describes one stored image, or os.ErrNotExist.
func (g *UploadGuard) Info(filename string) (*Info, error) {
	filename = filepath.Base(filename)
	fi, err := os.Stat(filepath.Join(g.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("stat image: %w", err)
	}
	info := g.describe(filename, fi)
	return &info, nil
}

func (g *UploadGuard) describe(filename string, fi os.FileInfo) Info {
	info := Info{
		Filename: filename,
		URL:      g.urlPrefix + "/" + filename,
		Size:     fi.Size(),
		Uploaded: fi.ModTime().Unix(),
	}
	if f, err := os.Open(filepath.Join(g.dir, filename)); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			info.Dimensions = Dimensions{Width: cfg.Width, Height: cfg.Height}
		}
		f.Close()
	}
	return info
}

// imageFiles globs the directory for every allow-listed extension.
func (g *UploadGuard) imageFiles() ([]string, error) {
	var files []string
	for ext := range allowedExtensions {
		matches, err := filepath.Glob(filepath.Join(g.dir, "*."+ext))
		if err != nil {
			return nil, fmt.Errorf("list images: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}
