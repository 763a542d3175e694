package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// maxDecodedSize caps the output of a single stream (64 MB). Page trees and
// cross-reference data are tiny; anything larger is not a document we render.
const maxDecodedSize = 64 << 20

var errTooLarge = errors.New("pdf: decoded stream exceeds size limit")

// decode returns the decoded body of a stream object, applying its /Filter
// chain. Only the filters used for structural data are supported.
func decode(s *Object) ([]byte, error) {
	filters, ok := s.Dict.Array("Filter")
	if !ok {
		return s.Data, nil
	}
	params, _ := s.Dict.Array("DecodeParms")

	data := s.Data
	for i, f := range filters {
		if f.Kind != Name {
			continue
		}
		var parms Dict
		if i < len(params) && params[i].Kind == Dictionary {
			parms = params[i].Dict
		}
		var err error
		switch f.Name {
		case "FlateDecode", "Fl":
			data, err = inflate(data, parms)
		case "ASCIIHexDecode", "AHx":
			data, err = unhexStream(data)
		default:
			err = fmt.Errorf("unsupported filter %s", f.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("pdf: %s: %w", f.Name, err)
		}
	}
	return data, nil
}

func inflate(data []byte, parms Dict) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecodedSize {
		return nil, errTooLarge
	}
	if parms == nil {
		return out, nil
	}
	switch predictor, _ := parms.Int("Predictor"); {
	case predictor == 2:
		return unTIFF(out, parms), nil
	case predictor >= 10:
		return unPNG(out, parms), nil
	}
	return out, nil
}

func unhexStream(data []byte) ([]byte, error) {
	var digits []byte
	for _, c := range data {
		if c == '>' {
			break
		}
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	_, err := hex.Decode(out, digits)
	return out, err
}

// geometry returns bytes per pixel and bytes per row for predictor params.
func geometry(parms Dict) (bpp, row int) {
	colors, bits, columns := int64(1), int64(8), int64(1)
	if v, ok := parms.Int("Colors"); ok && v > 0 {
		colors = v
	}
	if v, ok := parms.Int("BitsPerComponent"); ok && v > 0 {
		bits = v
	}
	if v, ok := parms.Int("Columns"); ok && v > 0 {
		columns = v
	}
	bpp = int((colors*bits + 7) / 8)
	row = int((columns*colors*bits + 7) / 8)
	return bpp, row
}

func unTIFF(data []byte, parms Dict) []byte {
	bpp, row := geometry(parms)
	for start := 0; start < len(data); start += row {
		end := min(start+row, len(data))
		for i := start + bpp; i < end; i++ {
			data[i] += data[i-bpp]
		}
	}
	return data
}

func unPNG(data []byte, parms Dict) []byte {
	bpp, row := geometry(parms)
	stride := row + 1
	rows := len(data) / stride
	out := make([]byte, rows*row)
	prev := make([]byte, row)

	for r := 0; r < rows; r++ {
		src := data[r*stride+1 : (r+1)*stride]
		dst := out[r*row : (r+1)*row]
		for i := range dst {
			var left, upLeft byte
			if i >= bpp {
				left, upLeft = dst[i-bpp], prev[i-bpp]
			}
			up := prev[i]
			switch data[r*stride] {
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				dst[i] = src[i]
			}
		}
		prev = dst
	}
	return out
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
