package filter

const (
	PostID            Field = "post.id"
	PostSlug          Field = "post.slug"
	PostTitle         Field = "post.title"
	PostContent       Field = "post.content"
	PostExcerpt       Field = "post.excerpt"
	PostStatus        Field = "post.status"
	PostAuthorID      Field = "post.author_id"
	PostOwnerID       Field = "post.owner_id"
	PostAuthorSlug    Field = "post.author_slug"
	PostAuthorName    Field = "post.author_name"
	PostCategoryID    Field = "post.category_id"
	PostCategorySlug  Field = "post.category_slug"
	PostCategoryName  Field = "post.category_name"
	PostTagSlug       Field = "post.tag_slug"
	PostTagName       Field = "post.tag_name"
	PostFeaturedImage Field = "post.featured_image"
	PostPublishedAt   Field = "post.published_at"
	PostCreatedAt     Field = "post.created_at"
	PostUpdatedAt     Field = "post.updated_at"
)

const (
	CategoryID          Field = "category.id"
	CategoryName        Field = "category.name"
	CategorySlug        Field = "category.slug"
	CategoryDescription Field = "category.description"
	CategoryPostsCount  Field = "category.posts_count"
	CategoryCreatedAt   Field = "category.created_at"
)

const (
	TagID         Field = "tag.id"
	TagName       Field = "tag.name"
	TagSlug       Field = "tag.slug"
	TagPostsCount Field = "tag.posts_count"
	TagCreatedAt  Field = "tag.created_at"
)

const (
	AuthorID          Field = "author.id"
	AuthorDisplayName Field = "author.display_name"
	AuthorSlug        Field = "author.slug"
	AuthorUsername    Field = "author.username"
	AuthorEmail       Field = "author.email"
	AuthorPostsCount  Field = "author.posts_count"
	AuthorCreatedAt   Field = "author.created_at"
)

const (
	CommentID        Field = "comment.id"
	CommentPostID    Field = "comment.post_id"
	CommentStatus    Field = "comment.status"
	CommentCreatedAt Field = "comment.created_at"
)
