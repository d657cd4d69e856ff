// Package staging allocates per-job working directories and sweeps the ones a
// crashed process left behind.
package staging
