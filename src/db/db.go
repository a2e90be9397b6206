package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

/*
A general error to be used when no results are found. This is the error returned
by QueryOne, and can generally be used by other database helpers that fetch a single
result but find nothing.
*/
var NotFound = errors.New("not found")

// Postgres error code for unique_violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a unique constraint or
// unique index rejecting a write.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var typeMap = pgtype.NewMap()

/*
Performs a SQL query and returns a slice of all the result rows. The query is
just plain SQL, but make sure to read the package documentation for details.
You must explicitly provide the type argument - this is how it knows what Go
type to map the results to, and it cannot be inferred.

This function always returns pointers to the values. This is convenient for
structs, but for other types, you may wish to use QueryScalar.
*/
func Query[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]*T, error) {
	it, err := QueryIterator[T](ctx, conn, query, args...)
	if err != nil {
		return nil, err
	}
	return it.ToSlice()
}

/*
Identical to Query, but returns only the first result row. If there are no
rows in the result set, returns NotFound.
*/
func QueryOne[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (*T, error) {
	rows, err := QueryIterator[T](ctx, conn, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, hasRow := rows.Next()
	if !hasRow {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, NotFound
	}

	return result, nil
}

/*
Identical to Query, but returns concrete values instead of pointers. More convenient
for primitive types.
*/
func QueryScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]T, error) {
	rows, err := QueryIterator[T](ctx, conn, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []T
	for {
		val, hasRow := rows.Next()
		if !hasRow {
			break
		}
		result = append(result, *val)
	}

	return result, rows.Err()
}

/*
Identical to QueryScalar, but returns only the first result value. If there are
no rows in the result set, returns NotFound.
*/
func QueryOneScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (T, error) {
	var zero T

	rows, err := QueryIterator[T](ctx, conn, query, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	result, hasRow := rows.Next()
	if !hasRow {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, NotFound
	}

	return *result, nil
}

/*
Identical to Query, but returns the Iterator instead of automatically converting
the results to a slice. The iterator must be closed after use.
*/
func QueryIterator[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (*Iterator[T], error) {
	destType := reflect.TypeOf((*T)(nil)).Elem()

	compiled, err := compileQuery(query, destType)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, compiled.query, args...)
	if err != nil {
		return nil, err
	}

	it := &Iterator[T]{
		fieldPaths:       compiled.fieldPaths,
		rows:             rows,
		destType:         compiled.destType,
		destTypeIsScalar: typeIsQueryable(compiled.destType),
	}

	return it, nil
}

type compiledQuery struct {
	query      string
	destType   reflect.Type
	fieldPaths []fieldPath
}

var reColumnsPlaceholder = regexp.MustCompile(`\$columns({(.*?)})?`)

func compileQuery(query string, destType reflect.Type) (compiledQuery, error) {
	columnsMatch := reColumnsPlaceholder.FindStringSubmatch(query)
	if columnsMatch == nil {
		return compiledQuery{
			query:    query,
			destType: destType,
		}, nil
	}

	// The presence of the $columns placeholder means that the destination type
	// must be a struct, and we will plonk that struct's fields into the query.
	if destType.Kind() != reflect.Struct {
		return compiledQuery{}, oops.New(nil, "$columns can only be used when querying into a struct, got %s", destType)
	}

	names, paths, err := getColumnNamesAndPaths(destType, nil, columnsMatch[2])
	if err != nil {
		return compiledQuery{}, err
	}

	return compiledQuery{
		query:      reColumnsPlaceholder.ReplaceAllString(query, strings.Join(names, ", ")),
		destType:   destType,
		fieldPaths: paths,
	}, nil
}

/*
Walks the `db` tags of a struct type. Nested structs contribute their own
tagged fields, joined with a dot onto the parent's column name, which is how
a joined table's columns are addressed (`game.title`). A non-empty prefix is
prepended to every column.
*/
func getColumnNamesAndPaths(destType reflect.Type, pathSoFar []int, prefix string) (names []string, paths []fieldPath, err error) {
	if destType.Kind() == reflect.Ptr {
		destType = destType.Elem()
	}

	if destType.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("can only get column names and paths from a struct, got type '%v' (at prefix '%v')", destType.Name(), prefix)
	}

	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		columnName := field.Tag.Get("db")
		if columnName == "" {
			continue
		}

		path := make(fieldPath, len(pathSoFar), len(pathSoFar)+1)
		copy(path, pathSoFar)
		path = append(path, i)

		fullName := columnName
		if prefix != "" {
			fullName = prefix + "." + columnName
		}

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		if typeIsQueryable(fieldType) {
			names = append(names, fullName)
			paths = append(paths, path)
		} else if fieldType.Kind() == reflect.Struct {
			subNames, subPaths, err := getColumnNamesAndPaths(fieldType, path, fullName)
			if err != nil {
				return nil, nil, err
			}
			names = append(names, subNames...)
			paths = append(paths, subPaths...)
		} else {
			return nil, nil, fmt.Errorf("field '%s' in type %s has invalid type '%s'", field.Name, destType, field.Type)
		}
	}

	return names, paths, nil
}

/*
Values of these kinds are ok to query even if they are not directly understood by pgtype.
This is common for custom types like:

	type Datestamp int
*/
var queryableKinds = []reflect.Kind{
	reflect.Int,
	reflect.Int32,
	reflect.Int64,
	reflect.String,
	reflect.Bool,
}

/*
Checks if we are able to handle a particular type in a database query. This applies only to
primitive types and not structs, since the database only returns individual primitive types
and it is our job to stitch them back together into structs later.
*/
func typeIsQueryable(t reflect.Type) bool {
	if _, ok := typeMap.TypeForValue(reflect.New(t).Elem().Interface()); ok {
		return true
	}

	k := t.Kind()
	for _, qk := range queryableKinds {
		if k == qk {
			return true
		}
	}

	return false
}

// A path to a particular field in query's destination type. Each index in the slice
// corresponds to a field index for use with Field on a reflect.Type or reflect.Value.
type fieldPath []int

type Iterator[T any] struct {
	fieldPaths       []fieldPath
	rows             pgx.Rows
	destType         reflect.Type
	destTypeIsScalar bool
	err              error
}

func (it *Iterator[T]) Next() (*T, bool) {
	if it.err != nil {
		return nil, false
	}

	hasNext := it.rows.Next()
	if !hasNext {
		it.Close()
		return nil, false
	}

	result := reflect.New(it.destType)

	vals, err := it.rows.Values()
	if err != nil {
		it.fail(oops.New(err, "failed to decode row"))
		return nil, false
	}

	if it.destTypeIsScalar {
		// This type can be directly queried, meaning pgx recognizes it, it's
		// a simple scalar thing, and we can just take the easy way out.
		if len(vals) != 1 {
			it.fail(oops.New(nil, "tried to query a scalar value, but got %v values in the row", len(vals)))
			return nil, false
		}
		if vals[0] != nil {
			if err := setValueFromDB(result.Elem(), reflect.ValueOf(vals[0])); err != nil {
				it.fail(err)
				return nil, false
			}
		}
		return result.Interface().(*T), true
	}

	if len(vals) != len(it.fieldPaths) {
		it.fail(oops.New(nil, "query returned %d columns but %s has %d db fields", len(vals), it.destType, len(it.fieldPaths)))
		return nil, false
	}

	for i, val := range vals {
		if val == nil {
			continue
		}

		field, structField := followPathThroughStructs(result, it.fieldPaths[i])
		if field.Kind() == reflect.Ptr {
			field.Set(reflect.New(field.Type().Elem()))
			field = field.Elem()
		}

		valReflected := reflect.ValueOf(val)
		if valReflected.Kind() == reflect.Ptr {
			valReflected = valReflected.Elem()
		}

		if err := setValueFromDB(field, valReflected); err != nil {
			logging.Error().
				Int("index", i).
				Str("field name", structField.Name).
				Stringer("field type", structField.Type).
				Stringer("value type", valReflected.Type()).
				Msg("failed to map column onto struct")
			it.fail(oops.New(err, "failed to set field '%s'", structField.Name))
			return nil, false
		}
	}

	return result.Interface().(*T), true
}

// Database integer widths rarely line up with Go's, so integer kinds convert
// freely between each other.
func setValueFromDB(dest reflect.Value, value reflect.Value) error {
	switch dest.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch value.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dest.SetInt(value.Int())
			return nil
		}
	case reflect.String:
		if value.Kind() == reflect.String {
			dest.SetString(value.String())
			return nil
		}
	}

	if value.Type().AssignableTo(dest.Type()) {
		dest.Set(value)
		return nil
	}
	if value.Type().ConvertibleTo(dest.Type()) {
		dest.Set(value.Convert(dest.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", value.Type(), dest.Type())
}

func (it *Iterator[T]) fail(err error) {
	it.err = err
	it.Close()
}

func (it *Iterator[T]) Close() {
	it.rows.Close()
}

// Err returns the first error hit while iterating, including errors reported
// by the database after the last row.
func (it *Iterator[T]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

/*
Pulls all the remaining values into a slice, and closes the iterator.
*/
func (it *Iterator[T]) ToSlice() ([]*T, error) {
	defer it.Close()
	var result []*T
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		result = append(result, row)
	}
	if err := it.Err(); err != nil {
		return nil, oops.New(err, "error while iterating through db results")
	}
	return result, nil
}

func followPathThroughStructs(structPtrVal reflect.Value, path []int) (reflect.Value, reflect.StructField) {
	val := structPtrVal
	var field reflect.StructField
	for _, i := range path {
		if val.Kind() == reflect.Ptr && val.Type().Elem().Kind() == reflect.Struct {
			if val.IsNil() {
				val.Set(reflect.New(val.Type().Elem()))
			}
			val = val.Elem()
		}
		field = val.Type().Field(i)
		val = val.Field(i)
	}
	return val, field
}
