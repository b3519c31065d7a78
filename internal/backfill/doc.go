// Package backfill seeds the registry with files processed before reelgate
// existed. ImportNames takes a plain list of filenames; ImportCSV takes the
// inventory export with size, duration and stream details. Imported records
// are legacy: their video track is settled and only subtitle extraction may
// still run.
package backfill
