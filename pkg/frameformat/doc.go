// Package frameformat parses the textual frame format descriptions
// that select per-protocol waveform properties. Each protocol has its
// own small grammar: UART accepts the classic "8n1" style spec plus an
// "inverted" keyword, SPI a comma separated option list, I2C the
// addressing mode. Parse results are plain option structs which the
// protocol handlers turn into frame geometry.
package frameformat
