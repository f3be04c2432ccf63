package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"Snowz-Migrator/sdk/go/snowz"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/descriptors/resolve", func(w http.ResponseWriter, r *http.Request) {
		var raw snowz.RawDescriptor
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		version := raw.Version
		if raw.Snapshot {
			version += "-SNAPSHOT"
		}
		_ = json.NewEncoder(w).Encode(snowz.Descriptor{
			Group:       raw.Group,
			BaseVersion: raw.Version,
			Snapshot:    raw.Snapshot,
			Version:     version,
		})
	})
	mux.HandleFunc("/api/v1/migrations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]snowz.MigrationRecord{{RunID: "demo-run", Group: "dev.snowz", Version: "1.0.0-SNAPSHOT", Status: "succeeded"}})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := snowz.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	desc, err := client.Resolve(ctx, snowz.RawDescriptor{Group: "dev.snowz", Version: "1.0.0", Snapshot: true})
	if err != nil {
		panic(err)
	}
	fmt.Printf("resolved %s:%s\n", desc.Group, desc.Version)

	records, err := client.Migrations(ctx, 10)
	if err != nil {
		panic(err)
	}
	for _, rec := range records {
		fmt.Printf("%s %s:%s %s\n", rec.RunID, rec.Group, rec.Version, rec.Status)
	}
}
