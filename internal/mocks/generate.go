package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name FixtureSource --dir ../livescore --output livescore --outpkg livescoremock --filename fixture_source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Publisher --dir ../livescore --output livescore --outpkg livescoremock --filename publisher_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/thread --output domain/thread --outpkg threadmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name PostEditor --dir ../../external/reddit --output reddit --outpkg redditmock --filename post_editor_mock.go
