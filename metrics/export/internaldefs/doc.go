// Package internaldefs holds the metric names shared by the exporters.
//
// Both the Prometheus and OTel exporters range over the same definitions, so a
// counter added to goCampus is exported under one name everywhere once it is listed
// here.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
