package inventory

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// LabelPNG renders a QR label for an item barcode, used for printed tags.
func (m *Manager) LabelPNG(itemID string, size int) ([]byte, error) {
	item, err := m.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(item.Barcode, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render label: %w", err)
	}
	return png, nil
}
