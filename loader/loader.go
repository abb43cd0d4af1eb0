// Package loader reads the ".maq" program file format (spec.md §6): a
// declared load address, a declared entry address, and a sequence of
// words. The text grammar reuses the reference configuration parser's
// line-based, '#'-comment-tolerant scanning applied to a program-image
// grammar instead of a device-config one.
//
//	<line> := '.ENTRY' <addr> | '.LOAD' <addr> | <word> *(<word>) | '#' <comment>
//	<addr> := <decimal> | '0x'<hex>
//	<word> := <decimal> | '0x'<hex>
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Image is a loaded program: its declared entry virtual address and the
// raw words making up its body, ready to be packed into bytes for the
// swap area.
type Image struct {
	EntryAddr uint32
	Words     []uint32
}

// Bytes packs Words as little-endian 32-bit words, the byte-exact form
// copied into the swap area (spec.md §3: "swap area... holding a
// byte-exact copy of each loaded program image").
func (im *Image) Bytes() []byte {
	out := make([]byte, len(im.Words)*4)
	for i, w := range im.Words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

func parseWord(tok string) (uint32, error) {
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := strconv.ParseUint(tok[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	return uint32(v), err
}

// Load parses r as a .maq program image.
func Load(r io.Reader) (*Image, error) {
	im := &Image{}
	haveEntry := false
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if strings.EqualFold(fields[0], ".ENTRY") {
			if len(fields) != 2 {
				return nil, fmt.Errorf("loader: line %d: .ENTRY needs one address", lineNumber)
			}
			v, err := parseWord(fields[1])
			if err != nil {
				return nil, fmt.Errorf("loader: line %d: bad entry address: %w", lineNumber, err)
			}
			im.EntryAddr = v
			haveEntry = true
			continue
		}
		if strings.EqualFold(fields[0], ".LOAD") {
			continue // load address is always 0 in this simulator; directive kept for format fidelity
		}

		for _, tok := range fields {
			v, err := parseWord(tok)
			if err != nil {
				return nil, fmt.Errorf("loader: line %d: bad word %q: %w", lineNumber, tok, err)
			}
			im.Words = append(im.Words, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !haveEntry {
		return nil, fmt.Errorf("loader: missing .ENTRY directive")
	}
	return im, nil
}

// LoadFile opens path and parses it as a .maq image.
func LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
