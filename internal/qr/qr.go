package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"ms-gymclass/internal/models"

	"github.com/skip2/go-qrcode"
)

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// GeneratePass renders a booking's check-in pass as a QR PNG. The payload
// is encrypted so a pass cannot be forged from a known booking ID.
func (g *Generator) GeneratePass(pass models.CheckinPass) ([]byte, error) {
	encoded, err := g.EncodePass(pass)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encoded, qrcode.Medium, 256)
}

// EncodePass returns the encrypted pass payload. This string is what a
// scanner reads out of the QR image and posts back for check-in.
func (g *Generator) EncodePass(pass models.CheckinPass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}
	return encryptAES(data, g.secret)
}

// DecodePass reverses EncodePass.
func (g *Generator) DecodePass(encoded string) (*models.CheckinPass, error) {
	data, err := decryptAES(encoded, g.secret)
	if err != nil {
		return nil, err
	}

	var pass models.CheckinPass
	if err := json.Unmarshal(data, &pass); err != nil {
		return nil, errors.New("malformed check-in pass")
	}
	if pass.BookingID == "" {
		return nil, errors.New("check-in pass missing booking id")
	}
	return &pass, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("pass is not valid base64")
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("pass payload too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
