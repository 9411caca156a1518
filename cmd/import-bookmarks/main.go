// import-bookmarks converts a folder of an exported bookmarks file into album
// rows. Runs as a dry run unless -enable-write is given.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/blastbeat-albums/backends/db"
	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/services/album"
	"github.com/dselans/blastbeat-albums/validate"
)

const (
	envPrefix = "BLASTBEAT_ALBUMS_"
	dbTimeout = 30 * time.Second
)

var csvHeader = []string{"videoId", "artist", "title", "published", "category", "addDate"}

func getenv(k, def string) string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return v
	}

	return def
}

func setLogLevel() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	switch strings.ToLower(getenv("LOG_LEVEL", "info")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func main() {
	godotenv.Load()

	inPath := flag.String("in", "", "exported bookmarks file (Netscape HTML)")
	folder := flag.String("folder", "", "name of the bookmarks folder to import")
	outPath := flag.String("out", "", "optional CSV output path")
	enableWrite := flag.Bool("enable-write", false, "enable writing to database (default: dry-run mode)")
	flag.Parse()

	if *inPath == "" {
		log.Fatal("missing -in flag")
	}

	if *folder == "" {
		log.Fatal("missing -folder flag")
	}

	setLogLevel()

	data, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatalf("unable to read bookmarks file: %v", err)
	}

	albums, err := bookmarks.Convert(data, *folder)
	if err != nil {
		logrus.Fatalf("conversion failed: %v", err)
	}

	logrus.Infof("Converted %d album(s) from folder '%s'", len(albums), *folder)

	for _, a := range albums {
		logrus.Debugf("%s | %s - %s (%d) | %s", a.VideoID, a.Artist, a.Title, a.Published, a.Category)
	}

	if *outPath != "" {
		if err := writeCSVFile(*outPath, albums); err != nil {
			logrus.Fatalf("unable to write CSV: %v", err)
		}

		logrus.Infof("Wrote %s", *outPath)
	}

	if !*enableWrite {
		logrus.Info("DRY RUN MODE - no database writes occurred")
		return
	}

	inserted, skipped, err := insert(albums)
	if err != nil {
		logrus.Fatalf("import failed: %v", err)
	}

	logrus.Infof("Import complete: %d inserted, %d skipped", inserted, len(skipped))

	for _, id := range skipped {
		logrus.Debugf("skipped existing or repeated video id %s", id)
	}
}

func insert(albums []*bookmarks.Album) (int, []string, error) {
	port, err := strconv.Atoi(getenv("DB_PORT", "5432"))
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid DB_PORT")
	}

	dbBackend, err := db.New(&db.Options{
		User:     getenv("DB_USER", "blastbeat"),
		Password: getenv("DB_PASSWORD", "blastbeat"),
		Host:     getenv("DB_HOST", "localhost"),
		Port:     port,
		DBName:   getenv("DB_NAME", "blastbeat"),
		SSLMode:  getenv("DB_SSL_MODE", "disable"),
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to connect to database")
	}
	defer dbBackend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	ids := make([]string, 0, len(albums))
	for _, a := range albums {
		ids = append(ids, a.VideoID)
	}

	existing, err := dbBackend.ExistingVideoIDs(ctx, ids)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to look up existing albums")
	}

	fresh, skipped := album.SplitNew(albums, existing)

	rows := make([]db.Album, 0, len(fresh))

	for _, a := range fresh {
		if err := validate.Album(a); err != nil {
			return 0, nil, errors.Wrapf(err, "album '%s' failed validation", a.VideoID)
		}

		rows = append(rows, album.ToDBAlbum(a))
	}

	inserted, err := dbBackend.InsertAlbums(ctx, rows)
	if err != nil {
		return 0, nil, err
	}

	return inserted, skipped, nil
}

func writeCSVFile(path string, albums []*bookmarks.Album) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeCSV(f, albums); err != nil {
		return err
	}

	return f.Close()
}

func writeCSV(w io.Writer, albums []*bookmarks.Album) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, a := range albums {
		if err := cw.Write([]string{
			a.VideoID,
			a.Artist,
			a.Title,
			strconv.Itoa(a.Published),
			a.Category,
			a.AddDate.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}
