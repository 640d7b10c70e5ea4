// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fitsfile is a small, dependency-free writer of FITS-like
// self-describing table/image files: fixed-width ASCII header cards
// terminated by an END card, a 2-D image data unit, and a single-row
// binary table data unit. It exists because no FITS library binding is
// available to this repository and implements product.TableImageWriter.
package fitsfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/stanford-ssi/eve-l0b/internal/product"
)

const (
	cardSize  = 80
	blockSize = 2880
)

// Writer implements product.TableImageWriter.
type Writer struct{}

// New returns a ready-to-use Writer.
func New() *Writer { return &Writer{} }

func formatCard(key string, value interface{}) string {
	var valStr string
	switch v := value.(type) {
	case string:
		valStr = fmt.Sprintf("'%-8s'", v)
	case float64:
		valStr = fmt.Sprintf("%20.8f", v)
	case int:
		valStr = fmt.Sprintf("%20d", v)
	default:
		valStr = fmt.Sprintf("%v", v)
	}
	card := fmt.Sprintf("%-8s= %s", key, valStr)
	if len(card) > cardSize {
		card = card[:cardSize]
	}
	for len(card) < cardSize {
		card += " "
	}
	return card
}

func padToBlock(w *bufio.Writer, written int) {
	if rem := written % blockSize; rem != 0 {
		pad := blockSize - rem
		w.Write(make([]byte, pad))
	}
}

func writeHeaders(w *bufio.Writer, headers []product.HeaderKV) int {
	n := 0
	for _, h := range headers {
		card := formatCard(h.Key, h.Value)
		w.WriteString(card)
		n += len(card)
	}
	w.WriteString(fmt.Sprintf("%-80s", "END"))
	n += cardSize
	padToBlock(w, n)
	return n
}

// WriteImage implements product.TableImageWriter.
func (Writer) WriteImage(path string, pixels [][]uint16, headers []product.HeaderKV, table product.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	height := len(pixels)
	width := 0
	if height > 0 {
		width = len(pixels[0])
	}
	full := append([]product.HeaderKV{
		{Key: "SIMPLE", Value: "T"},
		{Key: "BITPIX", Value: 16},
		{Key: "NAXIS", Value: 2},
		{Key: "NAXIS1", Value: width},
		{Key: "NAXIS2", Value: height},
	}, headers...)
	writeHeaders(w, full)

	dataBytes := 0
	for _, row := range pixels {
		for _, v := range row {
			binary.Write(w, binary.BigEndian, v)
			dataBytes += 2
		}
	}
	padToBlock(w, dataBytes)

	writeTableUnit(w, nil, table)
	return w.Flush()
}

// WriteTable implements product.TableImageWriter.
func (Writer) WriteTable(path string, headers []product.HeaderKV, rows []product.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	full := append([]product.HeaderKV{
		{Key: "SIMPLE", Value: "T"},
		{Key: "BITPIX", Value: 8},
		{Key: "NAXIS", Value: 0},
	}, headers...)
	writeHeaders(w, full)

	var table product.Row
	for _, row := range rows {
		table.Columns = append(table.Columns, row.Columns...)
	}
	writeTableUnit(w, nil, table)
	return w.Flush()
}

func writeTableUnit(w *bufio.Writer, _ []product.HeaderKV, row product.Row) {
	n := 0
	for _, col := range row.Columns {
		for _, v := range col.U16 {
			binary.Write(w, binary.BigEndian, v)
			n += 2
		}
		for _, v := range col.U32 {
			binary.Write(w, binary.BigEndian, v)
			n += 4
		}
		for _, v := range col.F64 {
			binary.Write(w, binary.BigEndian, v)
			n += 8
		}
	}
	padToBlock(w, n)
}
