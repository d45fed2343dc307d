package store

import sq "github.com/Masterminds/squirrel"

func qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
