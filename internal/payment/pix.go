package payment

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/lojinha-dev/storefront-api/internal/store"
)

// EMV field identifiers used by the PIX BR Code layout.
const (
	emvPayloadFormat       = "00"
	emvMerchantAccountInfo = "26"
	emvMerchantCategory    = "52"
	emvCurrency            = "53"
	emvAmount              = "54"
	emvCountry             = "58"
	emvMerchantName        = "59"
	emvMerchantCity        = "60"
	emvAdditionalData      = "62"
	emvCRC                 = "63"

	pixGUI = "br.gov.bcb.pix"
)

// ErrPixNotConfigured is returned when the store has no usable PIX key.
var ErrPixNotConfigured = errors.New("pix not configured for store")

// BuildPayload assembles the static "copia e cola" BR Code for one charge.
// Amount is in centavos; txid identifies the charge at the PSP.
func BuildPayload(settings store.PixSettings, txid string, amount int64) (string, error) {
	if !settings.Enabled || strings.TrimSpace(settings.KeyValue) == "" {
		return "", ErrPixNotConfigured
	}
	if amount <= 0 {
		return "", errors.New("amount must be positive")
	}
	txid = sanitizeTxID(txid)
	if txid == "" {
		return "", errors.New("txid is required")
	}

	var b strings.Builder
	b.WriteString(emv(emvPayloadFormat, "01"))
	account := emv("00", pixGUI) + emv("01", strings.TrimSpace(settings.KeyValue))
	b.WriteString(emv(emvMerchantAccountInfo, account))
	b.WriteString(emv(emvMerchantCategory, "0000"))
	b.WriteString(emv(emvCurrency, "986"))
	b.WriteString(emv(emvAmount, fmt.Sprintf("%d.%02d", amount/100, amount%100)))
	b.WriteString(emv(emvCountry, "BR"))
	b.WriteString(emv(emvMerchantName, truncate(merchantField(settings.MerchantName, "LOJA"), 25)))
	b.WriteString(emv(emvMerchantCity, truncate(merchantField(settings.MerchantCity, "SAO PAULO"), 15)))
	b.WriteString(emv(emvAdditionalData, emv("05", truncate(txid, 25))))

	payload := b.String() + emvCRC + "04"
	return payload + fmt.Sprintf("%04X", crc16([]byte(payload))), nil
}

// QRCodePNG renders the payload as a PNG image.
func QRCodePNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// VerifyPayload recomputes the trailing CRC of a BR Code.
func VerifyPayload(payload string) bool {
	if len(payload) < 8 {
		return false
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !strings.HasSuffix(body, emvCRC+"04") {
		return false
	}
	return fmt.Sprintf("%04X", crc16([]byte(body))) == sum
}

func emv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func merchantField(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func sanitizeTxID(txid string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(txid) {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// crc16 implements CRC-16/CCITT-FALSE as required by the BR Code spec.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
