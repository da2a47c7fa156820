// Package export is a two stage pipeline (format, then delivery) used by the
// drystage command and as a worked example of pkg/stage.
//
// Formats: string, csv, table. Deliveries: stdout, email. Deliveries write to
// the writer carried by the context (see WithWriter); email delivery only
// prints the message it would send.
package export
