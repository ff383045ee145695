// Package healthcheck periodically probes the service's components and
// keeps the last known status of each. The overall status is DOWN only when
// a critical component fails its probe.
package healthcheck
