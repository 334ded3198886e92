package store

import (
	"database/sql"
	"testing"
)

func TestInsertAndListFacts(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	err := s.InsertFact(Fact{
		FactID:       "fact-1",
		SessionID:    "sess-1",
		Entity:       "OpenAI",
		Attribute:    "valuation",
		Value:        "$157 billion",
		ValueType:    "currency",
		ValueNumeric: sql.NullFloat64{Float64: 157e9, Valid: true},
		Confidence:   0.6,
	})
	if err != nil {
		t.Fatalf("InsertFact failed: %v", err)
	}

	facts, err := s.ListFacts("sess-1")
	if err != nil {
		t.Fatalf("ListFacts failed: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if facts[0].ValueNumeric.Float64 != 157e9 {
		t.Fatalf("unexpected value_numeric: %v", facts[0].ValueNumeric.Float64)
	}
}

func TestGetFactNotFound(t *testing.T) {
	s := tempStore(t)
	if _, err := s.GetFact("missing"); err == nil {
		t.Fatal("expected error for missing fact")
	}
}

func TestInsertEntityDeduplicatesByNameAndType(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	for i := 0; i < 3; i++ {
		err := s.InsertEntity(Entity{EntityID: "entity-dup", SessionID: "sess-1", Name: "OpenAI", EntityType: "company"})
		if err != nil {
			t.Fatalf("InsertEntity failed: %v", err)
		}
	}
	err := s.InsertEntity(Entity{EntityID: "entity-other", SessionID: "sess-1", Name: "OpenAI", EntityType: "person"})
	if err != nil {
		t.Fatalf("InsertEntity failed: %v", err)
	}

	entities, err := s.ListEntities("sess-1")
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 distinct (name, type) entities, got %d", len(entities))
	}
}

func TestInsertAndListRelationships(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	err := s.InsertRelationship(Relationship{
		RelationshipID:   "rel-1",
		SessionID:        "sess-1",
		SourceEntity:     "Microsoft",
		TargetEntity:     "OpenAI",
		RelationshipType: "invests in",
		Confidence:       0.7,
	})
	if err != nil {
		t.Fatalf("InsertRelationship failed: %v", err)
	}

	rels, err := s.ListRelationships("sess-1")
	if err != nil {
		t.Fatalf("ListRelationships failed: %v", err)
	}
	if len(rels) != 1 || rels[0].RelationshipType != "invests in" {
		t.Fatalf("unexpected relationships: %+v", rels)
	}
}

func TestInsertAndListCitations(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	err := s.InsertCitation(Citation{
		CitationID:    "cite-1",
		SessionID:     "sess-1",
		Author:        sql.NullString{String: "Jane Doe", Valid: true},
		QualityRating: "B",
		IsValid:       true,
	})
	if err != nil {
		t.Fatalf("InsertCitation failed: %v", err)
	}

	citations, err := s.ListCitations("sess-1")
	if err != nil {
		t.Fatalf("ListCitations failed: %v", err)
	}
	if len(citations) != 1 || !citations[0].IsValid {
		t.Fatalf("unexpected citations: %+v", citations)
	}
}

func TestInsertAndListFactConflicts(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")
	s.InsertFact(Fact{FactID: "fact-a", SessionID: "sess-1", Entity: "X", Attribute: "revenue", Value: "100"})
	s.InsertFact(Fact{FactID: "fact-b", SessionID: "sess-1", Entity: "X", Attribute: "revenue", Value: "130"})

	err := s.InsertFactConflict(FactConflict{
		ConflictID:   "conflict-1",
		SessionID:    "sess-1",
		FactAID:      "fact-a",
		FactBID:      "fact-b",
		ConflictType: "numerical",
		Severity:     "moderate",
	})
	if err != nil {
		t.Fatalf("InsertFactConflict failed: %v", err)
	}

	conflicts, err := s.ListFactConflicts("sess-1")
	if err != nil {
		t.Fatalf("ListFactConflicts failed: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Severity != "moderate" {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}
}
