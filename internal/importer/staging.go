package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"
)

// Staging tables hold one source file each, every column as raw text. They
// live only for the duration of the refresh transaction (ON COMMIT DROP), so
// a failed cycle leaves nothing behind.
//
// The COPY options are chosen so that absolutely no interpretation happens at
// load time: tab delimiter, a quote character that cannot occur in the data,
// and a null sentinel that cannot occur either. The literal `\N` token (and
// any stray quotes or backslashes) land in staging verbatim; the typed
// projection is the single place sentinels become real NULLs.
const copyOptions = `WITH (FORMAT csv, DELIMITER E'\t', QUOTE E'\x01', NULL E'\x02')`

var stagingDDL = []string{
	`CREATE TEMP TABLE tmp_title_basics (
	  tconst           text,
	  title_type       text,
	  primary_title    text,
	  original_title   text,
	  is_adult         text,
	  start_year       text,
	  end_year         text,
	  runtime_minutes  text,
	  genres           text
	) ON COMMIT DROP`,
	`CREATE TEMP TABLE tmp_title_ratings (
	  tconst         text,
	  average_rating text,
	  num_votes      text
	) ON COMMIT DROP`,
	`CREATE TEMP TABLE tmp_title_principals (
	  tconst     text,
	  ordering   text,
	  nconst     text,
	  category   text,
	  job        text,
	  characters text
	) ON COMMIT DROP`,
	`CREATE TEMP TABLE tmp_name_basics (
	  nconst             text,
	  primary_name       text,
	  birth_year         text,
	  death_year         text,
	  primary_profession text,
	  known_for_titles   text
	) ON COMMIT DROP`,
}

var copyStatements = map[string]string{
	"title.basics.tsv.gz": `COPY tmp_title_basics
	  (tconst, title_type, primary_title, original_title, is_adult,
	   start_year, end_year, runtime_minutes, genres)
	FROM STDIN ` + copyOptions,
	"title.ratings.tsv.gz": `COPY tmp_title_ratings (tconst, average_rating, num_votes)
	FROM STDIN ` + copyOptions,
	"title.principals.tsv.gz": `COPY tmp_title_principals
	  (tconst, ordering, nconst, category, job, characters)
	FROM STDIN ` + copyOptions,
	"name.basics.tsv.gz": `COPY tmp_name_basics
	  (nconst, primary_name, birth_year, death_year, primary_profession, known_for_titles)
	FROM STDIN ` + copyOptions,
}

// StagingLoader bulk-loads gzipped TSV files into per-file temp tables.
type StagingLoader struct{}

func NewStagingLoader() *StagingLoader {
	return &StagingLoader{}
}

// CreateTables creates all staging tables inside tx.
func (l *StagingLoader) CreateTables(ctx context.Context, tx pgx.Tx) error {
	for _, ddl := range stagingDDL {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}
	}
	return nil
}

// Load streams one gzipped source file into its staging table, discarding the
// header line. Returns the number of rows copied.
func (l *StagingLoader) Load(ctx context.Context, tx pgx.Tx, fileName, path string) (int64, error) {
	copySQL, ok := copyStatements[fileName]
	if !ok {
		return 0, fmt.Errorf("no staging table for source file %s", fileName)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(bufio.NewReader(file))
	if err != nil {
		return 0, fmt.Errorf("gunzip %s: %w", path, err)
	}
	defer gz.Close()

	reader := bufio.NewReaderSize(gz, 1<<20)
	if err := skipHeaderLine(reader); err != nil {
		return 0, fmt.Errorf("skip header of %s: %w", fileName, err)
	}

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, reader, copySQL)
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", fileName, err)
	}
	return tag.RowsAffected(), nil
}

// skipHeaderLine consumes the first line including its LF (or lone CR)
// terminator. An empty file is fine; COPY then loads zero rows.
func skipHeaderLine(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if b == '\n' {
			return nil
		}
		if b == '\r' {
			next, err := r.Peek(1)
			if err == nil && next[0] == '\n' {
				_, _ = r.ReadByte()
			}
			return nil
		}
	}
}
