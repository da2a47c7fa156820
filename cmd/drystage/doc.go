// Command drystage runs the fibonacci export pipeline and inspects its
// stages.
//
//	drystage run --rows 10 --format csv --delivery stdout
//	drystage run --delivery email --email mathematician@example.com
//	drystage stages
//	drystage configs --format table
package main
