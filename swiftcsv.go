// # SwiftCSV: A High-Throughput Streaming CSV Library for Go
//
// SwiftCSV is a high-throughput Go library for streaming CSV parsing and decoding. It reads real-world CSV dialects record by record over unbounded input, keeps allocations low by reusing one buffer per reader, and exposes precise error information for malformed data.
//
// # Features
//
// - Streaming reader with configurable delimiter, quote, escape policy (doubled or backslash), terminator (auto LF/CRLF or fixed) and lone carriage return handling.
// - Two pull granularities: whole records (`ReadByteRecord`, `ReadStringRecord`, `Read`) and single fields (`NextField`, `NextStringField`) with `ErrEndOfRecord` marking record boundaries.
// - Byte and text views over one record buffer; text fields are validated as UTF-8 lazily, once per field.
// - Header capture (`WithHeaders`) and typed decoding into named structs, `Tuple` structs, arrays, slices and scalars, with pointer fields as optional values.
// - Structured errors: `ParseError`, `RecordError`, `SourceError`, `DecodeError` and `ValueError`, all unwrapping to sentinel values.
// - Buffered CSV writer with configurable delimiters, escape policy, newline policy, and forced quoting.
//
// # Getting Started
//
//	r := swiftcsv.NewReader(f, swiftcsv.WithHeaders(true))
//	for row, err := range swiftcsv.Decoded[City](r) {
//		...
//	}
//
// Views returned by a pull are valid until the next pull on the same Reader. A view used
// after that panics with ErrStaleRecord; copy the data out (Clone, Strings) to keep it.
package swiftcsv
