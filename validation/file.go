package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageInfo descreve um upload aceito.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Pixels em int64: dimensões grandes não estouram.
func (i ImageInfo) Pixels() int64 { return int64(i.Width) * int64(i.Height) }

// File valida uma imagem enviada. data == nil significa que nenhum arquivo veio.
// declaredSize é o tamanho anunciado pelo transporte (header do multipart); o
// maior entre ele e len(data) é comparado com o limite.
//
// Ordem, parando na primeira falha: presença, nome, extensão, tamanho,
// cabeçalho, área em pixels, decodificação completa.
func (v *Validator) File(data []byte, filename string, declaredSize int64) (ImageInfo, error) {
	if data == nil {
		return ImageInfo{}, reject("No file provided")
	}
	if filename == "" {
		return ImageInfo{}, reject("No file selected")
	}
	if !v.extensionAllowed(filename) {
		return ImageInfo{}, reject("File type not allowed. Allowed types: " + v.allowedList)
	}

	size := max(int64(len(data)), declaredSize)
	if size > v.maxFileSize {
		return ImageInfo{}, reject(fmt.Sprintf("File too large. Maximum size: %.1fMB", float64(v.maxFileSize)/(1024*1024)))
	}

	// DecodeConfig lê só o cabeçalho: as dimensões são checadas antes de
	// alocar qualquer buffer de pixels.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, reject("Invalid image file")
	}

	info := ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: strings.ToUpper(format)}
	if info.Pixels() > v.maxPixels {
		return ImageInfo{}, reject("Image dimensions too large")
	}

	// arquivo truncado ou só com cabeçalho passa no DecodeConfig
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return ImageInfo{}, reject("Invalid image file")
	}
	return info, nil
}

func (v *Validator) extensionAllowed(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return false
	}
	_, ok := v.extensions[strings.ToLower(filename[i+1:])]
	return ok
}
