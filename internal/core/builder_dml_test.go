package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder_Insert(t *testing.T) {
	qb := newBuilder(t, "postgres")

	sql, params, err := qb.Insert("tbl_user", map[string]any{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "tbl_user" ("name") VALUES (:p0)`, sql)
	assert.Equal(t, Params{":p0": "alice"}, params)

	sql, params, err = qb.Insert("t", map[string]any{"name": "a", "created": NewExp("NOW()")})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("created", "name") VALUES (NOW(), :p0)`, sql)
	assert.Equal(t, Params{":p0": "a"}, params)
}

func TestQueryBuilder_Insert_DefaultValues(t *testing.T) {
	sql, _, err := newBuilder(t, "postgres").Insert("t", nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" DEFAULT VALUES`, sql)

	sql, _, err = newBuilder(t, "mysql").Insert("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `t` () VALUES ()", sql)
}

func TestQueryBuilder_BatchInsert(t *testing.T) {
	qb := newBuilder(t, "postgres")

	sql, params, err := qb.BatchInsert("t", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES (:p0, :p1), (:p2, :p3)`, sql)
	assert.Equal(t, Params{":p0": 1, ":p1": "x", ":p2": 2, ":p3": "y"}, params)

	sql, _, err = qb.BatchInsert("t", []string{"a"}, nil)
	require.NoError(t, err)
	assert.Empty(t, sql)

	_, _, err = qb.BatchInsert("t", []string{"a", "b"}, [][]any{{1}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQueryBuilder_Upsert(t *testing.T) {
	row := map[string]any{"id": 1, "name": "a", "email": "a@example.com"}

	t.Run("postgres default update", func(t *testing.T) {
		sql, params, err := newBuilder(t, "postgres").Upsert("t", row, []string{"id"}, nil)
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "t" ("email", "id", "name") VALUES (:p0, :p1, :p2)`+
			` ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email", "name" = EXCLUDED."name"`, sql)
		assert.Len(t, params, 3)
	})

	t.Run("postgres do nothing", func(t *testing.T) {
		sql, _, err := newBuilder(t, "postgres").Upsert("t", row, []string{"id"}, []string{})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "t" ("email", "id", "name") VALUES (:p0, :p1, :p2) ON CONFLICT ("id") DO NOTHING`, sql)
	})

	t.Run("mysql", func(t *testing.T) {
		sql, _, err := newBuilder(t, "mysql").Upsert("t", row, []string{"id"}, []string{"name"})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO `t` (`email`, `id`, `name`) VALUES (:p0, :p1, :p2) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)", sql)
	})

	t.Run("sqlite", func(t *testing.T) {
		sql, _, err := newBuilder(t, "sqlite").Upsert("t", row, []string{"id"}, []string{"name"})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "t" ("email", "id", "name") VALUES (:p0, :p1, :p2) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name"`, sql)
	})
}

func TestQueryBuilder_Update(t *testing.T) {
	qb := newBuilder(t, "postgres")

	sql, params, err := qb.Update("tbl_user", map[string]any{"name": "bob", "status": 2}, "id = :id", Params{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "tbl_user" SET "name"=:p0, "status"=:p1 WHERE id = :id`, sql)
	assert.Equal(t, Params{":id": 7, ":p0": "bob", ":p1": 2}, params)

	sql, params, err = qb.Update("t", map[string]any{"n": NewExp("n + 1")}, HashExp{"id": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "n"=n + 1 WHERE "id"=:p0`, sql)
	assert.Equal(t, Params{":p0": 3}, params)

	_, _, err = qb.Update("t", nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQueryBuilder_Delete(t *testing.T) {
	qb := newBuilder(t, "postgres")

	sql, params, err := qb.Delete("t", In("id", 1, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id" IN (:p0, :p1)`, sql)
	assert.Equal(t, Params{":p0": 1, ":p1": 2}, params)

	sql, _, err = qb.Delete("t", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t"`, sql)
}

func TestQueryBuilder_CreateTable(t *testing.T) {
	qb := newBuilder(t, "postgres")
	sql, err := qb.CreateTable("tbl_user", []ColumnDef{
		{Name: "id", Type: "pk"},
		{Name: "name", Type: "string(64) NOT NULL"},
		{Name: "bio", Type: "text"},
		{Type: "UNIQUE (name)"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"tbl_user\" (\n"+
		"\t\"id\" serial NOT NULL PRIMARY KEY,\n"+
		"\t\"name\" character varying (64) NOT NULL,\n"+
		"\t\"bio\" text,\n"+
		"\tUNIQUE (name)\n"+
		")", sql)

	_, err = qb.CreateTable("t", nil, "")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQueryBuilder_DDL(t *testing.T) {
	pg := newBuilder(t, "postgres")
	my := newBuilder(t, "mysql")
	lite := newBuilder(t, "sqlite")

	assert.Equal(t, `ALTER TABLE "a" RENAME TO "b"`, pg.RenameTable("a", "b"))
	assert.Equal(t, "RENAME TABLE `a` TO `b`", my.RenameTable("a", "b"))
	assert.Equal(t, `DROP TABLE "a"`, pg.DropTable("a"))
	assert.Equal(t, `TRUNCATE TABLE "a" RESTART IDENTITY`, pg.TruncateTable("a"))
	assert.Equal(t, `DELETE FROM "a"`, lite.TruncateTable("a"))
	assert.Equal(t, `ALTER TABLE "a" ADD "c" integer`, pg.AddColumn("a", "c", "integer"))
	assert.Equal(t, `ALTER TABLE "a" DROP COLUMN "c"`, pg.DropColumn("a", "c"))
	assert.Equal(t, `ALTER TABLE "a" RENAME COLUMN "c" TO "d"`, pg.RenameColumn("a", "c", "d"))
	assert.Equal(t, `CREATE UNIQUE INDEX "idx_ab" ON "t" ("a", "b")`, pg.CreateIndex("idx_ab", "t", "a, b", true))
	assert.Equal(t, `CREATE INDEX "idx_l" ON "t" (LOWER(name))`, pg.CreateIndex("idx_l", "t", "LOWER(name)", false))
	assert.Equal(t, "DROP INDEX `idx` ON `t`", my.DropIndex("idx", "t"))

	sql, err := pg.AlterColumn("a", "c", "bigint")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "a" ALTER COLUMN "c" TYPE bigint`, sql)

	_, err = lite.AlterColumn("a", "c", "bigint")
	assert.ErrorIs(t, err, ErrNotSupported)

	sql, err = pg.AddForeignKey("fk_user", "post", "user_id", "tbl_user", "id", "CASCADE", "")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "post" ADD CONSTRAINT "fk_user" FOREIGN KEY ("user_id") REFERENCES "tbl_user" ("id") ON DELETE CASCADE`, sql)

	_, err = lite.AddForeignKey("fk_user", "post", "user_id", "tbl_user", "id", "", "")
	assert.ErrorIs(t, err, ErrNotSupported)

	sql, err = my.DropForeignKey("fk_user", "post")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `post` DROP FOREIGN KEY `fk_user`", sql)
}
