package graph

import (
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

// SchemaSDL is the public GraphQL contract
const SchemaSDL = `
schema {
	query: Query
	mutation: Mutation
}

enum Role {
	STUDENT
	PROFESSOR
	TA
	ADMIN
}

type UserInfo {
	id: ID!
	email: String!
	role: Role!
	teamId: ID
	courseId: ID
	firstName: String
	lastName: String
	fullName: String!
}

type AuthResponse {
	token: String!
	refreshToken: String!
	tokenType: String!
	expiresIn: Int!
	userInfo: UserInfo!
}

type LogoutResponse {
	success: Boolean!
	message: String!
	sessionsInvalidated: Int!
}

type UserPermissions {
	userId: ID!
	role: Role!
	permissions: [String!]!
	teamId: ID
	courseId: ID
	canManageTeam: Boolean!
	canManageCourse: Boolean!
	canViewAllTeams: Boolean!
	canSendNotifications: Boolean!
}

type TeamMember {
	id: ID!
	email: String!
	firstName: String
	lastName: String
	fullName: String!
	role: Role!
	teamId: ID
	courseId: ID
}

type Query {
	hello: String!
	getCurrentUser: UserInfo!
	getUserPermissions: UserPermissions!
	getTeamMembers(teamId: ID!): [TeamMember!]!
	getCourseMembers(courseId: ID!): [TeamMember!]!
}

type Mutation {
	login(email: String!, password: String!): AuthResponse!
	refreshToken(refreshToken: String!): AuthResponse!
	logout(token: String): LogoutResponse!
	logoutFromAllDevices: LogoutResponse!
}
`

// NewSchema parses SchemaSDL against the resolver
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(SchemaSDL, r,
		graphql.MaxDepth(8),
		graphql.MaxParallelism(10),
	)
}

// NewHandler serves POST /graphql for the resolver
func NewHandler(r *Resolver) (http.Handler, error) {
	schema, err := NewSchema(r)
	if err != nil {
		return nil, err
	}
	return &relay.Handler{Schema: schema}, nil
}
