package frameformat

import (
	"fmt"
	"strings"
)

// I2C holds the parsed I2C frame format options.
type I2C struct {
	Addr10Bit bool
}

// ParseI2C interprets an I2C frame format text. Only the addressing
// mode is configurable; 7 bit addressing is the default.
func ParseI2C(text string) (*I2C, error) {
	opts := &I2C{}

	list, err := optListParser.ParseString("", strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, fmt.Errorf("i2c frame format %q: %w", text, err)
	}

	for _, term := range list.Terms {
		switch term.Key {
		case "addr-7bit":
			_, err = term.flag()
			opts.Addr10Bit = false
		case "addr-10bit":
			_, err = term.flag()
			opts.Addr10Bit = true
		default:
			err = fmt.Errorf("unknown option %q", term.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("i2c frame format %q: %w", text, err)
		}
	}

	return opts, nil
}
