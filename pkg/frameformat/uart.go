package frameformat

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Parity selects the UART parity bit computation.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	}
	return fmt.Sprintf("Parity(%d)", int(p))
}

// UART limits. Frame format specs outside these ranges are data errors.
const (
	UARTMinDataBits = 5
	UARTMaxDataBits = 9
	UARTMaxStopBits = 20
)

// UART holds the parsed UART frame format options.
type UART struct {
	DataBits int
	Parity   Parity
	StopBits int
	HalfStop bool
	Inverted bool
}

// The UART grammar accepts "inverted" keywords and "8n1" style combo
// specs in any order, separated by commas or whitespace. Single letters
// lex separately from longer words so the parity character inside a
// combo like "8e2" gets its own token.
var uartLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Sep", Pattern: `[,\s]+`},
	{Name: "Word", Pattern: `[a-z]{2,}[a-z0-9-]*`},
	{Name: "Half", Pattern: `\.5`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Letter", Pattern: `[a-z]`},
})

type uartSpec struct {
	Terms []*uartTerm `parser:"@@*"`
}

type uartTerm struct {
	Inverted bool       `parser:"  @'inverted'"`
	Combo    *uartCombo `parser:"| @@"`
}

type uartCombo struct {
	DataBits int    `parser:"@Number"`
	Parity   string `parser:"@Letter"`
	StopBits int    `parser:"@Number"`
	Half     bool   `parser:"@Half?"`
}

var uartParser = participle.MustBuild[uartSpec](
	participle.Lexer(uartLexer),
	participle.Elide("Sep"),
)

// ParseUART interprets a UART frame format text. Unspecified fields
// keep the conventional 8n1 defaults.
func ParseUART(text string) (*UART, error) {
	opts := &UART{
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
	}

	spec, err := uartParser.ParseString("", strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, fmt.Errorf("uart frame format %q: %w", text, err)
	}

	for _, term := range spec.Terms {
		if term.Inverted {
			opts.Inverted = true
			continue
		}
		combo := term.Combo
		if combo.DataBits < UARTMinDataBits || combo.DataBits > UARTMaxDataBits {
			return nil, fmt.Errorf("uart frame format %q: data bits %d out of range",
				text, combo.DataBits)
		}
		opts.DataBits = combo.DataBits
		switch combo.Parity {
		case "n":
			opts.Parity = ParityNone
		case "o":
			opts.Parity = ParityOdd
		case "e":
			opts.Parity = ParityEven
		default:
			return nil, fmt.Errorf("uart frame format %q: unknown parity %q",
				text, combo.Parity)
		}
		if combo.StopBits > UARTMaxStopBits {
			return nil, fmt.Errorf("uart frame format %q: stop bits %d out of range",
				text, combo.StopBits)
		}
		opts.StopBits = combo.StopBits
		opts.HalfStop = combo.Half
	}

	return opts, nil
}
