package material

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DecodeImpactRecord decodes the binary impact-material record layout from
// spec.md §6: three little-endian int32 lengths (cf_len, op_len, rt_len)
// followed by three contiguous float64 arrays of those lengths.
func DecodeImpactRecord(r io.Reader) (*ImpactData, error) {
	var lens [3]int32
	if err := binary.Read(r, binary.LittleEndian, &lens); err != nil {
		return nil, fmt.Errorf("material: impact record header: %w", err)
	}
	cfLen, opLen, rtLen := int(lens[0]), int(lens[1]), int(lens[2])
	if cfLen <= 0 || opLen <= 0 || rtLen <= 0 {
		return nil, fmt.Errorf("material: impact record has non-positive array length (cf=%d op=%d rt=%d)", cfLen, opLen, rtLen)
	}

	cf, err := readFloat64s(r, cfLen)
	if err != nil {
		return nil, fmt.Errorf("material: impact record cf array: %w", err)
	}
	op, err := readFloat64s(r, opLen)
	if err != nil {
		return nil, fmt.Errorf("material: impact record op array: %w", err)
	}
	rt, err := readFloat64s(r, rtLen)
	if err != nil {
		return nil, fmt.Errorf("material: impact record rt array: %w", err)
	}

	data := &ImpactData{CF: cf, OP: op, RT: rt}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodeScrapeRecord decodes the binary scrape-material record layout from
// spec.md §6: a little-endian float64 roughness ratio followed by the raw
// surface float64 array. The catalog derives dsdx and d2sdx2 from the
// surface using PixelToMeter.
func DecodeScrapeRecord(r io.Reader) (*ScrapeData, error) {
	var roughness float64
	if err := binary.Read(r, binary.LittleEndian, &roughness); err != nil {
		return nil, fmt.Errorf("material: scrape record roughness ratio: %w", err)
	}

	surface, err := readRemainingFloat64s(r)
	if err != nil {
		return nil, fmt.Errorf("material: scrape record surface array: %w", err)
	}

	dsdx, d2sdx2, err := DerivativesFromSurface(surface)
	if err != nil {
		return nil, err
	}
	data := &ScrapeData{DSDX: dsdx, D2SDX2: d2sdx2, RoughnessRatio: roughness}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// EncodeImpactRecord is the inverse of DecodeImpactRecord, used by tests and
// host-supplied material file writers.
func EncodeImpactRecord(d *ImpactData) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	lens := [3]int32{int32(len(d.CF)), int32(len(d.OP)), int32(len(d.RT))}
	if err := binary.Write(&buf, binary.LittleEndian, lens); err != nil {
		return nil, err
	}
	for _, arr := range [][]float64{d.CF, d.OP, d.RT} {
		if err := binary.Write(&buf, binary.LittleEndian, arr); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodeScrapeRecord is the inverse of DecodeScrapeRecord's surface-input
// half: it writes the roughness ratio followed by the raw surface profile
// (not the derived dsdx/d2sdx2, which the decoder recomputes).
func EncodeScrapeRecord(roughnessRatio float64, surface []float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, roughnessRatio); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, surface); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readFloat64s(r io.Reader, n int) ([]float64, error) {
	out := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readRemainingFloat64s(r io.Reader) ([]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("material: surface array byte length %d is not a multiple of 8", len(raw))
	}
	n := len(raw) / 8
	out := make([]float64, n)
	br := bytes.NewReader(raw)
	if err := binary.Read(br, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
