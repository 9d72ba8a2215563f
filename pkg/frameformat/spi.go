package frameformat

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SPI data word sizes. Only full bytes are supported.
const (
	SPIMinDataBits = 8
	SPIMaxDataBits = 8
)

// SPI holds the parsed SPI frame format options.
type SPI struct {
	CSHigh   bool
	DataBits int
	MSBFirst bool
	CPOL     bool
	CPHA     bool
}

// The SPI and I2C grammars share a token shape: words, optionally with
// a numeric argument after an equals sign.
var optListLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Sep", Pattern: `[,\s]+`},
	{Name: "Word", Pattern: `[a-z][a-z0-9-]*`},
	{Name: "Eq", Pattern: `=`},
	{Name: "Number", Pattern: `[0-9]+`},
})

type optList struct {
	Terms []*optTerm `parser:"@@*"`
}

type optTerm struct {
	Key   string `parser:"@Word"`
	Value *int   `parser:"( Eq @Number )?"`
}

var optListParser = participle.MustBuild[optList](
	participle.Lexer(optListLexer),
	participle.Elide("Sep"),
)

func (t *optTerm) flag() (bool, error) {
	if t.Value != nil {
		return false, fmt.Errorf("option %q takes no value", t.Key)
	}
	return true, nil
}

func (t *optTerm) number(max int) (int, error) {
	if t.Value == nil {
		return 0, fmt.Errorf("option %q needs a value", t.Key)
	}
	if *t.Value > max {
		return 0, fmt.Errorf("option %q value %d out of range", t.Key, *t.Value)
	}
	return *t.Value, nil
}

// ParseSPI interprets an SPI frame format text. Unspecified fields keep
// the "cs-low,bits=8,mode=0,msb-first" defaults.
func ParseSPI(text string) (*SPI, error) {
	opts := &SPI{
		DataBits: SPIMinDataBits,
		MSBFirst: true,
	}

	list, err := optListParser.ParseString("", strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, fmt.Errorf("spi frame format %q: %w", text, err)
	}

	for _, term := range list.Terms {
		var v int
		switch term.Key {
		case "cs-low":
			_, err = term.flag()
			opts.CSHigh = false
		case "cs-high":
			_, err = term.flag()
			opts.CSHigh = true
		case "msb-first":
			_, err = term.flag()
			opts.MSBFirst = true
		case "lsb-first":
			_, err = term.flag()
			opts.MSBFirst = false
		case "bits":
			v, err = term.number(SPIMaxDataBits)
			if err == nil && v < SPIMinDataBits {
				err = fmt.Errorf("option %q value %d out of range", term.Key, v)
			}
			opts.DataBits = v
		case "mode":
			v, err = term.number(3)
			opts.CPOL = v&2 != 0
			opts.CPHA = v&1 != 0
		case "cpol":
			v, err = term.number(1)
			opts.CPOL = v != 0
		case "cpha":
			v, err = term.number(1)
			opts.CPHA = v != 0
		default:
			err = fmt.Errorf("unknown option %q", term.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("spi frame format %q: %w", text, err)
		}
	}

	return opts, nil
}
