/*
Package local implements types.Adapter over the host filesystem,
anchoring each adapter instance at a directory or file path. Listdir
and Walk mirror os.ReadDir; Download streams a file in fixed-size
chunks; Upload writes through a temp file in the destination's parent
directory and renames it into place on Finalize, so a transfer that
fails partway through never leaves a corrupt file at the destination
path.
*/
package local
