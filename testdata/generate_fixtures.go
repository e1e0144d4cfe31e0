//go:build ignore

// This program generates test fixture files for drsplit.
package main

import (
	"fmt"
	"os"

	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/table"
)

var zones = []string{"DAKAR-1", "dakar 1", "Dakar_1", "Thiès", "THIES", "Kaolack", "Saint-Louis", ""}

func main() {
	if err := generateSample(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.xlsx: %v\n", err)
		os.Exit(1)
	}

	if err := generateLarge(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating large.xlsx: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test fixtures generated successfully.")
}

func generateSample() error {
	sheets := []xlsx.Sheet{
		{
			Name:    "Ventes",
			Columns: []string{"Date", "Zone", "Produit", "Montant"},
			Rows: []table.Row{
				{table.StrValue("2024-01-05"), table.StrValue("DAKAR-1"), table.StrValue("Riz"), table.NumValue(125000)},
				{table.StrValue("2024-01-05"), table.StrValue("dakar 1"), table.StrValue("Huile"), table.NumValue(45000)},
				{table.StrValue("2024-01-06"), table.StrValue("Thiès"), table.StrValue("Riz"), table.NumValue(98000)},
				{table.StrValue("2024-01-06"), table.StrValue("THIES"), table.StrValue("Sucre"), table.NumValue(32000)},
				{table.StrValue("2024-01-07"), table.StrValue("Kaolack"), table.StrValue("Riz"), table.NumValue(76000)},
				{table.StrValue("2024-01-07"), table.StrValue("Saint-Louis"), table.StrValue("Huile"), table.NumValue(51000)},
				{table.StrValue("2024-01-08"), table.Value{}, table.StrValue("Sucre"), table.NumValue(12000)},
				{table.StrValue("2024-01-08"), table.StrValue("Kaolack"), table.StrValue("Lait"), table.BoolValue(true)},
			},
		},
		{
			Name:    "Notes",
			Columns: []string{"Note"},
			Rows:    []table.Row{{table.StrValue("Fichier d'exemple pour drsplit")}},
		},
	}

	data, err := xlsx.WriteBytes(sheets)
	if err != nil {
		return err
	}
	return os.WriteFile("testdata/sample.xlsx", data, 0644)
}

func generateLarge() error {
	rows := make([]table.Row, 5000)
	for i := range rows {
		rows[i] = table.Row{
			table.NumValue(float64(i + 1)),
			table.StrValue(zones[i%len(zones)]),
			table.NumValue(float64(i%97) * 1250),
		}
	}
	data, err := xlsx.WriteBytes([]xlsx.Sheet{{Name: "Data", Columns: []string{"ID", "Zone", "Montant"}, Rows: rows}})
	if err != nil {
		return err
	}
	return os.WriteFile("testdata/large.xlsx", data, 0644)
}
