// Command import loads supported regions and their landmarks into the
// database from a JSON file. It replaces the original shapefile batch
// import; region geometry arrives pre-extracted as polygon rings.
//
// Usage: import <regions.json>
//
// File format:
//
//	{
//	  "regions": [
//	    {
//	      "name": "Campus",
//	      "ring": [[46.70, -117.20], [46.70, -117.14], ...],
//	      "landmarks": [{"name": "Fountain", "lat": 46.73, "lon": -117.17}]
//	    }
//	  ]
//	}
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/storage"
)

type landmarkSpec struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type regionSpec struct {
	Name      string         `json:"name"`
	Ring      [][2]float64   `json:"ring"`
	Landmarks []landmarkSpec `json:"landmarks"`
}

type importFile struct {
	Regions []regionSpec `json:"regions"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: import <regions.json>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.Region{}, &models.Landmark{}); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	s := storage.NewService(db, nil) // No redis needed for the import CLI

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("failed to read %s: %v", os.Args[1], err)
	}

	var file importFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Fatalf("failed to parse %s: %v", os.Args[1], err)
	}

	for _, spec := range file.Regions {
		if len(spec.Ring) < 3 {
			log.Fatalf("region %q: ring needs at least 3 vertices", spec.Name)
		}

		ring := make(geo.Polygon, 0, len(spec.Ring))
		for _, pair := range spec.Ring {
			ring = append(ring, geo.Point{Lat: pair[0], Lon: pair[1]})
		}

		region := &models.Region{Name: spec.Name}
		region.SetRing(ring)
		if err := s.SaveRegion(region); err != nil {
			log.Fatalf("failed to save region %q: %v", spec.Name, err)
		}

		for _, lm := range spec.Landmarks {
			landmark := &models.Landmark{
				Name:      lm.Name,
				Latitude:  lm.Lat,
				Longitude: lm.Lon,
				RegionID:  &region.ID,
			}
			if !region.Contains(landmark.Location()) {
				log.Printf("WARNING: landmark %q lies outside region %q", lm.Name, spec.Name)
			}
			if err := s.SaveLandmark(landmark); err != nil {
				log.Fatalf("failed to save landmark %q: %v", lm.Name, err)
			}
		}

		fmt.Printf("Imported region %q with %d landmarks.\n", spec.Name, len(spec.Landmarks))
	}
}
