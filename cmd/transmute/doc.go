// Command transmute uploads files, converts them between formats and
// manages the stored originals and their converted counterparts.
//
// Global settings come from defaults, an optional JSON file (-c) and the
// single-letter flags of internal/server/config, in that order:
//
//	transmute -o ./data upload clip.mov
//	transmute -o ./data convert <file-id> mp4 --quality high
//	transmute -o ./data download <file-id> --out clip.mp4
package main
