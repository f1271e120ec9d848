package voucher

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/keymint-app/keymint/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	pageWidth  = 210.0
	pageHeight = 297.0
	marginX    = 10.0
	marginY    = 10.0
	gap        = 4.0
	cols       = 2
	rows       = 5
)

// GeneratePDF renders one voucher card per key onto A4 pages. Each card
// carries a QR code of the key string so clients can scan instead of typing.
func GeneratePDF(siteName string, keys []models.Key) ([]byte, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("voucher: no keys to export")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	cardW := (pageWidth - marginX*2 - gap*float64(cols-1)) / float64(cols)
	cardH := (pageHeight - marginY*2 - gap*float64(rows-1)) / float64(rows)
	perPage := cols * rows

	for i, key := range keys {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		indexOnPage := i % perPage
		col := indexOnPage % cols
		row := indexOnPage / cols
		x := marginX + float64(col)*(cardW+gap)
		y := marginY + float64(row)*(cardH+gap)

		if err := drawCard(pdf, siteName, key, i, x, y, cardW, cardH); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if errOutput := pdf.Output(&buf); errOutput != nil {
		return nil, fmt.Errorf("voucher: render: %w", errOutput)
	}
	return buf.Bytes(), nil
}

func drawCard(pdf *gofpdf.Fpdf, siteName string, key models.Key, index int, x, y, w, h float64) error {
	pdf.Rect(x, y, w, h, "D")

	qrPng, errEncode := qrcode.Encode(key.KeyString, qrcode.Medium, 256)
	if errEncode != nil {
		return fmt.Errorf("voucher: qr encode: %w", errEncode)
	}
	imgName := fmt.Sprintf("qr_%d", index)
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(qrPng))

	qrSize := h * 0.55
	if qrSize > w*0.4 {
		qrSize = w * 0.4
	}
	pdf.ImageOptions(imgName, x+3, y+(h-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

	textX := x + qrSize + 6
	textW := w - qrSize - 9

	pdf.SetXY(textX, y+3)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(textW, 4, siteName, "", 0, "L", false, 0, "")

	pdf.SetXY(textX, y+9)
	pdf.SetFont("Courier", "B", 9)
	pdf.CellFormat(textW, 4, key.KeyString, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 7)
	pdf.SetXY(textX, y+15)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("Game: %s", key.Game), "", 0, "L", false, 0, "")
	pdf.SetXY(textX, y+19)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("Devices: %d", key.DeviceLimit), "", 0, "L", false, 0, "")
	pdf.SetXY(textX, y+23)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("Expires: %s", key.ExpiresAt.UTC().Format("2006-01-02")), "", 0, "L", false, 0, "")
	return nil
}
