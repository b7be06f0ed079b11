package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/models"
	"github.com/adil/docexchange-backend/policy"
	"github.com/adil/docexchange-backend/storage"
	"github.com/adil/docexchange-backend/token"
)

var (
	// ErrForbidden is a policy rejection. It carries no hint about
	// whether the file exists.
	ErrForbidden = errors.New("operation not permitted")

	// ErrNotFound covers an unknown file, an unknown token, or a blob
	// missing after an otherwise valid redemption.
	ErrNotFound = errors.New("not found")

	// ErrGone means the token expired or was already redeemed. The two
	// cases are deliberately indistinguishable to the caller so a
	// failed redemption never reveals whether an earlier one happened.
	ErrGone = errors.New("download link no longer usable")
)

// Content types for the upload allow-list. mime.TypeByExtension does
// not know the office formats on a bare system.
var contentTypes = map[string]string{
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Broker turns an authenticated "I want this file" request into a
// one-time download link, and later streams the file to whoever
// presents that link.
type Broker struct {
	db      *gorm.DB
	tokens  *token.Store
	blobs   storage.Store
	baseURL string
}

func New(db *gorm.DB, tokens *token.Store, blobs storage.Store, baseURL string) *Broker {
	return &Broker{
		db:      db,
		tokens:  tokens,
		blobs:   blobs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Link is a freshly minted redemption URL plus its expiry, so the
// caller can show when it stops working.
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// QRCodePNG renders the link as a QR code image.
func (l *Link) QRCodePNG(size int) ([]byte, error) {
	return qrcode.Encode(l.URL, qrcode.Medium, size)
}

// RequestLink mints a one-time download link for the file. The
// requester must be a client-role user; the role comes from the users
// row loaded by the auth layer on this very request, never from a
// client-supplied claim.
func (b *Broker) RequestLink(requester *models.User, fileID uuid.UUID) (*Link, error) {
	if !policy.Allowed(requester.Role, policy.OpMint) {
		return nil, ErrForbidden
	}

	var file models.File
	if err := b.db.First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load file %s: %w", fileID, err)
	}

	rec, err := b.tokens.Create(file.ID, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("mint download token: %w", err)
	}

	return &Link{
		URL:       fmt.Sprintf("%s/api/secure-download/%s", b.baseURL, rec.Token),
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Download is a redeemed file ready to stream.
type Download struct {
	Content     io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
	FileID      uuid.UUID
	Token       string
}

// Redeem consumes the token and opens the file behind it. Anyone
// holding the token may call this; see policy.Allowed. Once the store
// marks the token redeemed it stays consumed even if streaming never
// starts or the blob turns out to be gone — there is no refund.
func (b *Broker) Redeem(ctx context.Context, tok string) (*Download, error) {
	rec, err := b.tokens.Redeem(tok)
	switch {
	case errors.Is(err, token.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrAlreadyRedeemed):
		return nil, ErrGone
	case err != nil:
		return nil, err
	}

	var file models.File
	if err := b.db.First(&file, "id = ?", rec.FileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load file %s: %w", rec.FileID, err)
	}

	ok, err := b.blobs.Exists(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check blob %s: %w", file.StorageKey, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	rc, err := b.blobs.Open(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", file.StorageKey, err)
	}

	return &Download{
		Content:     rc,
		Filename:    file.OriginalName,
		ContentType: ContentTypeFor(file.FileType),
		Size:        file.FileSize,
		FileID:      file.ID,
		Token:       rec.Token,
	}, nil
}

// ContentTypeFor maps a stored file type to a best-effort content type.
func ContentTypeFor(fileType string) string {
	if ct, ok := contentTypes[strings.ToLower(fileType)]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + fileType); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
