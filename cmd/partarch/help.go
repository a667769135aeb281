package main

import (
	"fmt"
	"io"
)

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "partarch version %s\n", version)
	fmt.Fprintln(w, "Partition archiver - ordered per-partition table exports")
}

// PrintUsage prints the short usage hint shown after a usage error
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: partarch [options] <partition> [partition...]")
	fmt.Fprintln(w, "Run 'partarch --help' for details.")
}

// PrintHelp prints comprehensive help information
func PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "partarch - Partition archiver")
	fmt.Fprintf(w, "Version: %s\n\n", version)

	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  partarch [options] <partition> [partition...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Every configured table is exported for every partition into")
	fmt.Fprintln(w, "  <output>/<partition key>/<TABLE>.<ext>. The partition key is the")
	fmt.Fprintln(w, "  partition id without export.partition_prefix (P20240105 -> 20240105).")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -o, --output <dir>         Output root directory (default: .)")
	fmt.Fprintln(w, "  -f, --force                Overwrite existing files and split parts")
	fmt.Fprintln(w, "  -m, --metadata             Write the resolved query to <TABLE>.sql (collides like data files)")
	fmt.Fprintln(w, "  -v, --verbose              Debug logging")
	fmt.Fprintln(w, "  -q, --quiet                Warnings and errors only")
	fmt.Fprintf(w, "      --config <file>        Configuration file (default: %s)\n", DefaultConfigFile)
	fmt.Fprintln(w, "      --tables <a,b>         Export only the listed tables")
	fmt.Fprintln(w, "      --chunk-size <MB>      Split threshold in MB (default: export.chunk_size_mb)")
	fmt.Fprintln(w, "      --create-config <type> Write a sample config: sqlite, postgres, mysql, mssql")
	fmt.Fprintln(w, "      --version              Show version")
	fmt.Fprintln(w, "  -h, --help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "TABLES:")
	fmt.Fprintln(w, "  select     SELECT without ORDER BY, with {partition} or {partition_key}")
	fmt.Fprintln(w, "  order_by   Output columns of the select (names or positions) with an")
	fmt.Fprintln(w, "             optional ASC/DESC; table prefixes such as o.id are rejected")
	fmt.Fprintln(w, "             because rows are read back through a helper view")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ENVIRONMENT:")
	fmt.Fprintf(w, "  %s       Overrides database.password\n", PasswordEnv)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EXIT CODES:")
	fmt.Fprintln(w, "  0    completed")
	fmt.Fprintln(w, "  1    completed with warnings")
	fmt.Fprintln(w, "  2    usage error")
	fmt.Fprintln(w, "  3    output already exists (use --force)")
	fmt.Fprintln(w, "  4    configuration, connection or session setup failed")
	fmt.Fprintln(w, "  5    other fatal error")
	fmt.Fprintln(w, "  130  interrupted")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  partarch --create-config postgres")
	fmt.Fprintln(w, "  partarch -o /archive P20240105 P20240106")
	fmt.Fprintln(w, "  partarch --tables orders --chunk-size 100 -m P20240105")
}
